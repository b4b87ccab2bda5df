package reloc

import "errors"

// ErrCapacityExceeded is returned when block discovery finds more than
// MaxEntries distinct blocks. Fatal — spec.md §7.
var ErrCapacityExceeded = errors.New("reloc: more than MaxEntries compressed blocks found")

// ErrUnknownCommand marks a pack-direction entry whose Kind isn't one
// of Raw0x17, Hdr0x18, FakeHdr0x1A, or ASM0xFF. Per spec.md §7 this is
// reported on the diagnostic channel and the entry is skipped; it
// never aborts the whole Pack call.
var ErrUnknownCommand = errors.New("reloc: entry has an unrecognized command kind")

// ErrMalformedInput marks a pack-direction block whose synthetic header
// describes a payload running past the end of the input; Pack logs it
// and skips the entry. Extend logs a failed decode with the codec's own
// error instead, leaving the entry unplaced (New == 0), which the
// patchers then skip.
var ErrMalformedInput = errors.New("reloc: block failed to decode")
