package reloc

import (
	"go.uber.org/zap"

	"sm64ext/pkg/mio0"
	"sm64ext/pkg/rom"
)

const packAlignment = 16

// audioFixupOffset is the hardcoded offset of a LUI instruction that
// ends up targeting a colliding sound-heap base address once assets
// are relocated; libsm64.c's sm64_compress_mio0 compensates for it as
// a one-off fixup, not a general address range — reproduced verbatim
// rather than generalized (spec.md §4.3.2 step 7).
const audioFixupOffset = 0xD48B6

// Pack rewrites each block of a previously-extended image at its own
// address (aligned up to 16 bytes), recompressing it when Compress is
// set and copying it unchanged otherwise. Blocks are not moved back
// below rom.ExtensionBase and the image is not compacted. It returns
// the resulting image length, which — matching libsm64.c's
// sm64_compress_mio0 exactly — is always len(in): this operation
// recompresses blocks into the space they already occupy rather than
// shrinking the overall buffer.
func Pack(cfg Config, in, out []byte) (int, error) {
	log := cfg.logger()
	copy(out, in)

	table := NewTable()
	if _, err := table.Add(Entry{Old: rom.ExtensionBase}); err != nil {
		return 0, err
	}
	if err := ScanBytecodePack(in, len(in), table); err != nil {
		return 0, err
	}
	ScanASM(in, rom.LowRegionEnd, table)
	table.SortByOld()

	for i := 0; i < table.Len(); i++ {
		e := table.At(i)
		inAddr := int(e.Old)
		length := int(e.NewEnd) - inAddr
		if length < 0 {
			length = 0
		}
		outAddr := alignUp(uint32(inAddr), packAlignment)

		fillBlock(out, inAddr, length)

		compLen, err := packEntry(cfg, in, out, e, inAddr, int(outAddr), length)
		if err != nil {
			log.Warn("pack entry skipped", zap.Uint32("old", e.Old), zap.Error(err))
			continue
		}

		e.New = outAddr
		e.NewEnd = outAddr + uint32(compLen)
	}

	patchReferences(out, len(in), table)
	applyAudioFixup(out)

	return len(in), nil
}

// packEntry dispatches on an entry's Kind per spec.md §4.3.2 step 5 and
// returns the number of bytes it wrote at out[outAddr:].
func packEntry(cfg Config, in, out []byte, e *Entry, inAddr, outAddr, length int) (int, error) {
	switch e.Kind {
	case Raw0x17:
		if cfg.Compress {
			encoded := mio0.Encode(in[inAddr : inAddr+length])
			copy(out[outAddr:], encoded)
			e.Kind = Hdr0x18
			return len(encoded), nil
		}
		copy(out[outAddr:], in[inAddr:inAddr+length])
		return length, nil

	case Hdr0x18:
		copy(out[outAddr:], in[inAddr:inAddr+length])
		return length, nil

	case FakeHdr0x1A, ASM0xFF:
		if cfg.Compress {
			h := mio0.DecodeHeader(in[inAddr:])
			rawStart := inAddr + int(h.UncompOffset)
			rawEnd := rawStart + int(h.DestSize)
			if rawEnd > len(in) {
				return 0, ErrMalformedInput
			}
			encoded := mio0.Encode(in[rawStart:rawEnd])
			copy(out[outAddr:], encoded)
			return len(encoded), nil
		}
		copy(out[outAddr:], in[inAddr:inAddr+length])
		return length, nil

	default:
		return 0, ErrUnknownCommand
	}
}

// applyAudioFixup reroutes the sound-heap base from 0x803D0000 to
// 0x807B0000 when the known memory-map collision pattern is present.
// spec.md §4.3.2 step 7 / §6's "Audio fixup constant".
func applyAudioFixup(out []byte) {
	if audioFixupOffset+1 >= len(out) {
		return
	}
	if out[audioFixupOffset] == 0x80 && out[audioFixupOffset+1] == 0x3D {
		out[audioFixupOffset+1] = 0x7B
	}
}
