package rom

import "bytes"

// Type identifies how an SM64 image's header is laid out.
type Type int

const (
	// Extended is a big-endian image that has already been extended
	// past the original 8 MiB boundary.
	Extended Type = iota
	// ByteSwapped is a .v64-style image with adjacent bytes swapped.
	ByteSwapped
	// BigEndian is a native .z64-style 8 MiB image.
	BigEndian
	// Invalid is returned for anything that doesn't match a known
	// signature/length combination.
	Invalid
)

func (t Type) String() string {
	switch t {
	case Extended:
		return "extended"
	case ByteSwapped:
		return "byte_swapped"
	case BigEndian:
		return "big_endian"
	default:
		return "invalid"
	}
}

const sizeEightMB = 8 * 1024 * 1024

var (
	signatureByteSwapped = []byte{0x37, 0x80, 0x40, 0x12}
	signatureBigEndian   = []byte{0x80, 0x37, 0x12, 0x40}
)

// Classify inspects the first 4 bytes of buf (and its length) and
// returns which of the four ROM variants it represents. It is total:
// every input, including a too-short buffer, returns a defined Type.
func Classify(buf []byte) Type {
	if len(buf) < 4 {
		return Invalid
	}
	head := buf[:4]
	switch {
	case bytes.Equal(head, signatureByteSwapped) && len(buf) == sizeEightMB:
		return ByteSwapped
	case bytes.Equal(head, signatureBigEndian) && len(buf) == sizeEightMB:
		return BigEndian
	case bytes.Equal(head, signatureBigEndian) && len(buf) > sizeEightMB:
		return Extended
	default:
		return Invalid
	}
}
