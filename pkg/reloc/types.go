// Package reloc implements the reference scanner and relocation engine:
// discovering MIO0 blocks and every bytecode/ASM reference to them,
// relocating blocks into (or out of) the extension region, and
// patching every reference to match.
package reloc

// Kind classifies how a reference entry's block is wrapped and
// referenced, mirroring libsm64.c's ptr_t.command field.
type Kind uint8

const (
	// Unclassified entries have been discovered (a MIO0 signature was
	// found) but no reference to them has been seen yet.
	Unclassified Kind = iota
	// Raw0x17 blocks carry no MIO0 header in the output buffer — the
	// consumer reads them as already-decompressed data.
	Raw0x17
	// Hdr0x18 blocks carry a real MIO0 header.
	Hdr0x18
	// FakeHdr0x1A blocks carry a synthetic "all literal" MIO0 header
	// wrapping otherwise-raw data.
	FakeHdr0x1A
	// ASM0xFF entries are referenced only by a LUI/LUI/ADDIU/ADDIU
	// pointer reconstruction in code, not by a bytecode command.
	ASM0xFF
)

// CommandByte returns the bytecode command byte a bytecode reference
// to a block of this kind should carry. ASM0xFF and Unclassified have
// no bytecode representation; CommandByte returns 0 for them, and the
// bytecode patcher leaves the command byte alone in that case.
func (k Kind) CommandByte() byte {
	switch k {
	case Raw0x17:
		return 0x17
	case Hdr0x18:
		return 0x18
	case FakeHdr0x1A:
		return 0x1A
	default:
		return 0
	}
}

// KindFromCommandByte maps a bytecode command byte to a Kind. ok is
// false for any byte that isn't a recognized command.
func KindFromCommandByte(b byte) (k Kind, ok bool) {
	switch b {
	case 0x17:
		return Raw0x17, true
	case 0x18:
		return Hdr0x18, true
	case 0x1A:
		return FakeHdr0x1A, true
	default:
		return Unclassified, false
	}
}

func (k Kind) String() string {
	switch k {
	case Raw0x17:
		return "RAW_0x17"
	case Hdr0x18:
		return "HDR_0x18"
	case FakeHdr0x1A:
		return "FAKE_HDR_0x1A"
	case ASM0xFF:
		return "ASM_0xFF"
	default:
		return "UNCLASSIFIED"
	}
}

// Entry is one reference-table row: a distinct compressed block, its
// original and (once relocated) new locations, and how it's
// referenced. Field names and meaning match spec.md §3 exactly.
type Entry struct {
	Old    uint32 // original block address (input-buffer offset)
	New    uint32 // assigned extension-region offset after relocation
	NewEnd uint32 // exclusive end offset of the placed block
	Addr   uint32 // offset of the four-instruction ASM sequence, when Kind == ASM0xFF
	Kind   Kind
}

// MaxEntries is a soft validation ceiling carried over from the
// source's fixed-size table (128 was sufficient for the one image it
// targeted); Table is backed by a growable slice rather than a fixed
// array, but Add refuses any entry past MaxEntries with
// ErrCapacityExceeded (spec.md §7).
const MaxEntries = 128

// Table is the growable, order-preserving reference table. It
// replaces the source's fixed ptr_t[128] array plus linear find_ptr
// scan with a slice plus an old -> index map, per Design Notes
// ("Fixed-capacity table -> growable collection", "Linear search
// `find_ptr` -> mapping") — same behavior, no more O(L*N) scanning.
type Table struct {
	entries []Entry
	byOld   map[uint32]int
}

// NewTable returns an empty reference table.
func NewTable() *Table {
	return &Table{byOld: make(map[uint32]int)}
}

// Add appends a new entry and returns its index, or ErrCapacityExceeded
// once the soft MaxEntries ceiling is crossed.
func (t *Table) Add(e Entry) (int, error) {
	if len(t.entries) >= MaxEntries {
		return -1, ErrCapacityExceeded
	}
	idx := len(t.entries)
	t.entries = append(t.entries, e)
	t.byOld[e.Old] = idx
	return idx, nil
}

// Find returns the index of the entry whose Old field equals old, or
// -1 if no such entry exists.
func (t *Table) Find(old uint32) int {
	idx, ok := t.byOld[old]
	if !ok {
		return -1
	}
	return idx
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// At returns a pointer to the entry at idx for in-place mutation by
// the scanner and relocation engine.
func (t *Table) At(idx int) *Entry {
	return &t.entries[idx]
}

// Entries returns the table's entries in discovery/placement order.
func (t *Table) Entries() []Entry {
	return t.entries
}

// SortByOld reorders entries by ascending Old address, as the pack
// operation requires (spec.md §4.3.2 step 4) before entries are walked
// to assign new placements. The byOld index is rebuilt to match.
func (t *Table) SortByOld() {
	sortEntriesByOld(t.entries)
	for i, e := range t.entries {
		t.byOld[e.Old] = i
	}
}
