package checksum

import "errors"

// ErrBufferTooShort is returned by Update when buf is shorter than the
// checksum window it must read (spec §4.1 requires the output buffer
// to be at least 0x101000 bytes).
var ErrBufferTooShort = errors.New("checksum: buffer shorter than 0x101000 bytes")
