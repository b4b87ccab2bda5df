package reloc

import "go.uber.org/zap"

// DumpSink receives each relocated block's compressed and decompressed
// bytes when Config.Dump is set. spec.md §1 names per-block debug
// dumping an external collaborator concern; the core never touches a
// filesystem itself — cmd/sm64ext supplies a file-writing
// implementation, and the default (nil) does nothing.
type DumpSink interface {
	WriteBlock(old uint32, compressed, raw []byte) error
}

// Config carries the recognized options from spec.md §6.
type Config struct {
	// Alignment placements in the extension region are rounded up to.
	// Must be a power of two.
	Alignment uint32
	// Padding is extra unused space left after each placed block.
	Padding uint32
	// Fill overwrites vacated original blocks with 0x01.
	Fill bool
	// Dump routes each block's bytes to DumpSink, when set.
	Dump     bool
	DumpSink DumpSink
	// Compress re-enables MIO0 compression during Pack; ignored by
	// Extend.
	Compress bool
	// Logger receives the diagnostic channel spec.md §7 describes:
	// blocks that fail to decode or do not fit the output buffer, and
	// pack entries skipped for an unknown command or a malformed header.
	// A no-op logger is used if nil.
	Logger *zap.Logger
}

// logger returns c.Logger, or a no-op logger if none was set.
func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// alignUp rounds addr up to the next multiple of alignment, which must
// be a power of two.
func alignUp(addr, alignment uint32) uint32 {
	if alignment == 0 {
		return addr
	}
	mask := alignment - 1
	return (addr + mask) &^ mask
}

func (c Config) dump(old uint32, compressed, raw []byte) {
	if c.Dump && c.DumpSink != nil {
		_ = c.DumpSink.WriteBlock(old, compressed, raw)
	}
}
