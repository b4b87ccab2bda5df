package reloc

import (
	"go.uber.org/zap"

	"sm64ext/pkg/mio0"
	"sm64ext/pkg/rom"
)

// fakeHeaderPadding is the 2 trailing zero bytes of an empty
// back-reference token table that every synthetic "all literal" MIO0
// header reserves (libsm64.c's COMPRESSED_LENGTH).
const fakeHeaderPadding = 2

// Extend relocates every MIO0 block out of in's packed asset region
// into out's extension region, patches every bytecode/ASM reference to
// match, and leaves the low 0x800000 bytes of out holding a patched
// copy of in. It does not recompute the boot checksum — call
// checksum.Update separately once the extended image is complete.
//
// out must have enough capacity for in's bytes plus every relocated
// block; Extend does not grow it.
func Extend(cfg Config, in, out []byte) error {
	log := cfg.logger()

	// The low 0x800000 bytes of the extended image are the input
	// bytes with references patched in place (spec.md §6's persisted
	// state layout); populate that before scanning or patching.
	copy(out, in)

	table := NewTable()
	if err := FindBlocks(in, table); err != nil {
		return err
	}
	ScanBytecodeExtend(in, table)
	ScanASM(in, rom.LowRegionEnd, table)

	outAddr := uint32(rom.ExtensionBase)
	for i := 0; i < table.Len(); i++ {
		e := table.At(i)
		inAddr := int(e.Old)

		outAddr = alignUp(outAddr, cfg.Alignment)

		raw, consumed, err := mio0.Decode(in[inAddr:])
		if err != nil {
			log.Warn("block failed to decode, skipping",
				zap.Uint32("old", e.Old), zap.Error(err))
			continue
		}

		var placed []byte
		switch e.Kind {
		case FakeHdr0x1A, ASM0xFF:
			placed = wrapFakeHeader(raw)
		case Hdr0x18:
			// The payload is unwrapped in the extension region; the
			// reference downgrades to RAW_0x17.
			e.Kind = Raw0x17
			placed = raw
		default:
			placed = raw
		}

		if int(outAddr)+len(placed) > len(out) {
			log.Error("extension region overflow, skipping block",
				zap.Uint32("old", e.Old))
			continue
		}
		copy(out[outAddr:], placed)
		cfg.dump(e.Old, in[inAddr:inAddr+consumed], raw)

		e.New = outAddr
		e.NewEnd = outAddr + uint32(len(placed))

		if cfg.Fill {
			fillBlock(out, inAddr, consumed)
		}

		outAddr += uint32(len(placed)) + cfg.Padding
	}

	patchReferences(out, len(in), table)
	return nil
}

// wrapFakeHeader prepends a synthetic MIO0 header describing raw as
// entirely literal data, per spec.md §4.3.1 step c. Grounded on
// libsm64.c's fake-header construction in sm64_decompress_mio0.
func wrapFakeHeader(raw []byte) []byte {
	bitLength := (len(raw)+7)/8 + fakeHeaderPadding
	moveOffset := mio0.HeaderLength + bitLength + fakeHeaderPadding

	out := make([]byte, moveOffset+len(raw))
	copy(out[moveOffset:], raw)

	h := mio0.Header{
		DestSize:     uint32(len(raw)),
		CompOffset:   uint32(moveOffset - fakeHeaderPadding),
		UncompOffset: uint32(moveOffset),
	}
	mio0.EncodeHeader(out, h)
	for i := mio0.HeaderLength; i < moveOffset-fakeHeaderPadding; i++ {
		out[i] = 0xFF
	}
	// out[moveOffset-2 : moveOffset) is already zero from make().
	return out
}

func fillBlock(buf []byte, start, length int) {
	end := start + length
	if end > len(buf) {
		end = len(buf)
	}
	for i := start; i < end; i++ {
		buf[i] = 0x01
	}
}
