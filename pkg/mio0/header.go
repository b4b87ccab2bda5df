// Package mio0 implements the compressed-block codec and its header
// format. spec.md names this codec an opaque external collaborator
// ("decode(src) -> (raw, consumed)" / "encode(src, n) -> compressed");
// no general-purpose compression library in the retrieval pack speaks
// this proprietary Nintendo format (see DESIGN.md), so it is
// implemented here directly from the public MIO0 layout and from how
// libsm64.c's sm64_decompress_mio0/sm64_compress_mio0 drive it.
package mio0

import "sm64ext/pkg/rom"

// Signature is the 4-byte marker every MIO0 block starts with.
const Signature = "MIO0"

// HeaderLength is the fixed size of a MIO0 header in bytes.
const HeaderLength = 16

// Header describes the three regions of a MIO0 block that follow it:
// a layout bit-plane, a table of 2-byte back-reference tokens, and a
// pool of literal bytes.
type Header struct {
	DestSize     uint32 // decompressed size
	CompOffset   uint32 // offset to the back-reference token table
	UncompOffset uint32 // offset to the literal byte pool
}

// EncodeHeader writes h as a 16-byte MIO0 header at buf[0:16].
func EncodeHeader(buf []byte, h Header) {
	copy(buf[0:4], Signature)
	rom.WriteU32BE(buf, 4, h.DestSize)
	rom.WriteU32BE(buf, 8, h.CompOffset)
	rom.WriteU32BE(buf, 12, h.UncompOffset)
}

// DecodeHeader reads a 16-byte MIO0 header from buf[0:16]. It does not
// verify the signature — callers that need to distinguish a MIO0 block
// from other data should check buf[0:4] separately (this is what the
// block-discovery scan does).
func DecodeHeader(buf []byte) Header {
	return Header{
		DestSize:     rom.ReadU32BE(buf, 4),
		CompOffset:   rom.ReadU32BE(buf, 8),
		UncompOffset: rom.ReadU32BE(buf, 12),
	}
}
