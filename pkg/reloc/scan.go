package reloc

import (
	"sm64ext/pkg/mio0"
	"sm64ext/pkg/mips"
	"sm64ext/pkg/rom"
)

// blockStride is the alignment MIO0 blocks are discovered on.
const blockStride = 16

// bytecodeStride is the 4-byte stride both bytecode and ASM scans walk.
const bytecodeStride = 4

// FindBlocks walks the asset region [rom.LowRegionEnd, len(buf)) on
// 16-byte strides looking for the MIO0 signature, adding one
// Unclassified entry per hit. spec.md §4.2.1.
func FindBlocks(buf []byte, table *Table) error {
	sig := []byte(mio0.Signature)
	for addr := rom.LowRegionEnd; addr+4 <= len(buf); addr += blockStride {
		if string(buf[addr:addr+4]) == string(sig) {
			if _, err := table.Add(Entry{Old: uint32(addr)}); err != nil {
				return err
			}
		}
	}
	return nil
}

// isBytecodeCommand reports whether buf[addr] is a recognized
// bytecode command byte and byte 1 is the fixed 0x0C marker.
func isBytecodeCommand(buf []byte, addr int) bool {
	if addr+12 > len(buf) {
		return false
	}
	switch buf[addr] {
	case 0x17, 0x18, 0x1A:
		return buf[addr+1] == 0x0C
	default:
		return false
	}
}

// ScanBytecodeExtend implements the extend-direction half of spec.md
// §4.2.2: walks the asset region for 12-byte bytecode references with
// byte 2 == 0x00 and, for 0x18/0x1A commands whose start pointer
// matches a table entry, records the reference kind. 0x17 is not
// expected in unextended input and is ignored here, matching the
// source.
func ScanBytecodeExtend(buf []byte, table *Table) {
	for addr := rom.LowRegionEnd; addr+12 <= len(buf); addr += bytecodeStride {
		if !isBytecodeCommand(buf, addr) || buf[addr+2] != 0x00 {
			continue
		}
		switch buf[addr] {
		case 0x18, 0x1A:
		default:
			continue
		}
		ptr := rom.ReadU32BE(buf, addr+4)
		idx := table.Find(ptr)
		if idx < 0 {
			continue
		}
		if buf[addr] == 0x18 {
			table.At(idx).Kind = Hdr0x18
		} else {
			table.At(idx).Kind = FakeHdr0x1A
		}
	}
}

// ScanBytecodePack implements the pack-direction half of spec.md
// §4.2.2: the same 12-byte pattern, but with byte 2 < 0x02 accepted
// (Design Notes: the predicates are intentionally left inconsistent)
// and restricted to pointers within [rom.ExtensionBase, inLength) —
// there are no block signatures in an extended image, so the bytecode
// is the only source of truth and populates the table from scratch.
func ScanBytecodePack(buf []byte, inLength int, table *Table) error {
	for addr := rom.LowRegionEnd; addr+12 <= inLength; addr += bytecodeStride {
		if !isBytecodeCommand(buf, addr) || buf[addr+2] >= 0x02 {
			continue
		}
		ptr := rom.ReadU32BE(buf, addr+4)
		if ptr < rom.ExtensionBase || int(ptr) >= inLength {
			continue
		}
		if table.Find(ptr) >= 0 {
			continue
		}
		end := rom.ReadU32BE(buf, addr+8)
		if int(end) >= inLength || end <= ptr {
			continue
		}
		kind, ok := KindFromCommandByte(buf[addr])
		if !ok {
			continue
		}
		if _, err := table.Add(Entry{Old: ptr, NewEnd: end, Kind: kind}); err != nil {
			return err
		}
	}
	return nil
}

// ScanASM implements spec.md §4.2.3: walks the low (code) region for
// the four-instruction LUI/LUI/ADDIU/ADDIU idiom, reconstructs the
// start/end pointers it encodes, and — when the start pointer matches
// a table entry — marks it ASM0xFF and records where to patch it.
// Shared verbatim between Extend and Pack, as in the source.
func ScanASM(buf []byte, codeEnd int, table *Table) {
	for addr := 0; addr+16 <= codeEnd; addr += bytecodeStride {
		if mips.Decode(buf[addr]) != mips.LUI || mips.Decode(buf[addr+4]) != mips.LUI ||
			mips.Decode(buf[addr+8]) != mips.ADDIU || mips.Decode(buf[addr+12]) != mips.ADDIU {
			continue
		}
		start := rom.JoinAddr(rom.ReadU16BE(buf, addr+2), rom.ReadU16BE(buf, addr+14))
		end := rom.JoinAddr(rom.ReadU16BE(buf, addr+6), rom.ReadU16BE(buf, addr+10))

		idx := table.Find(start)
		if idx < 0 {
			continue
		}
		e := table.At(idx)
		e.Kind = ASM0xFF
		e.Addr = uint32(addr)
		e.NewEnd = end
	}
}
