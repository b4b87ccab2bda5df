package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sm64ext/pkg/checksum"
	"sm64ext/pkg/reloc"
	"sm64ext/pkg/rom"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "sm64ext",
		Short: "Relocate and repack an SM64 ROM's compressed asset blocks",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose diagnostic logging")

	// classify command
	classifyCmd := &cobra.Command{
		Use:   "classify [rom-file]",
		Short: "Report the ROM layout an image file uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Println(rom.Classify(buf))
			return nil
		},
	}

	// checksum command
	checksumCmd := &cobra.Command{
		Use:   "checksum [rom-file]",
		Short: "Recompute and write the boot checksum in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, swapped, err := readNormalized(args[0])
			if err != nil {
				return err
			}
			if err := checksum.Update(buf); err != nil {
				return err
			}
			crc1, crc2 := checksum.Compute(buf)
			fmt.Printf("checksum: 0x%08X 0x%08X\n", crc1, crc2)
			return writeNormalized(args[0], buf, swapped)
		},
	}

	// extend command
	var extendOut string
	var extendAlign uint32
	var extendPadding uint32
	var extendFill bool
	var extendDump string
	var extendReserve uint32

	extendCmd := &cobra.Command{
		Use:   "extend [rom-file]",
		Short: "Relocate every compressed asset block into an extension region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			in, swapped, err := readNormalized(args[0])
			if err != nil {
				return err
			}
			if got := rom.Classify(in); got != rom.BigEndian {
				return fmt.Errorf("extend requires an 8 MiB big-endian image, got %s", got)
			}

			out := make([]byte, len(in)+int(extendReserve))

			var sink reloc.DumpSink
			if extendDump != "" {
				if err := os.MkdirAll(extendDump, 0o755); err != nil {
					return err
				}
				sink = fileDumpSink{dir: extendDump}
			}

			cfg := reloc.Config{
				Alignment: extendAlign,
				Padding:   extendPadding,
				Fill:      extendFill,
				Dump:      extendDump != "",
				DumpSink:  sink,
				Logger:    log,
			}
			if err := reloc.Extend(cfg, in, out); err != nil {
				return err
			}
			if err := checksum.Update(out); err != nil {
				return err
			}

			dest := extendOut
			if dest == "" {
				dest = args[0] + ".ext"
			}
			fmt.Printf("wrote %d bytes to %s\n", len(out), dest)
			return writeNormalized(dest, out, swapped)
		},
	}
	extendCmd.Flags().StringVarP(&extendOut, "output", "o", "", "Output file path (default: <input>.ext)")
	extendCmd.Flags().Uint32Var(&extendAlign, "align", 16, "Block placement alignment in the extension region")
	extendCmd.Flags().Uint32Var(&extendPadding, "padding", 0, "Extra bytes of padding after each placed block")
	extendCmd.Flags().BoolVar(&extendFill, "fill", true, "Overwrite vacated original blocks with 0x01")
	extendCmd.Flags().StringVar(&extendDump, "dump", "", "Directory to write each relocated block's bytes to")
	extendCmd.Flags().Uint32Var(&extendReserve, "reserve", 4*1024*1024, "Extra bytes of capacity to reserve past the input length")

	// pack command
	var packOut string
	var packCompress bool

	packCmd := &cobra.Command{
		Use:   "pack [extended-rom-file]",
		Short: "Repack a previously extended image's blocks in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			in, swapped, err := readNormalized(args[0])
			if err != nil {
				return err
			}
			if got := rom.Classify(in); got != rom.Extended {
				return fmt.Errorf("pack requires a previously extended image, got %s", got)
			}

			out := make([]byte, len(in))
			cfg := reloc.Config{Compress: packCompress, Logger: log}
			length, err := reloc.Pack(cfg, in, out)
			if err != nil {
				return err
			}
			out = out[:length]
			if err := checksum.Update(out); err != nil {
				return err
			}

			dest := packOut
			if dest == "" {
				dest = args[0] + ".packed"
			}
			fmt.Printf("wrote %d bytes to %s\n", len(out), dest)
			return writeNormalized(dest, out, swapped)
		},
	}
	packCmd.Flags().StringVarP(&packOut, "output", "o", "", "Output file path (default: <input>.packed)")
	packCmd.Flags().BoolVar(&packCompress, "compress", true, "Recompress blocks with MIO0 instead of leaving them raw")

	rootCmd.AddCommand(classifyCmd, checksumCmd, extendCmd, packCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// readNormalized reads path and, if its bytes are byte-swapped (.v64),
// normalizes them to big-endian for internal processing. The returned
// swapped flag tells writeNormalized whether to undo that before
// writing the result back out. Byte-swap handling is a caller concern
// (spec.md §1's external collaborators) — the core packages only ever
// see big-endian buffers.
func readNormalized(path string) (buf []byte, swapped bool, err error) {
	buf, err = os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	if rom.Classify(buf) == rom.ByteSwapped {
		byteSwap16(buf)
		return buf, true, nil
	}
	return buf, false, nil
}

func writeNormalized(path string, buf []byte, swapped bool) error {
	if swapped {
		byteSwap16(buf)
	}
	return os.WriteFile(path, buf, 0o644)
}

// byteSwap16 swaps every pair of bytes in place, converting between
// the .v64 byte-swapped layout and the big-endian .z64 layout.
func byteSwap16(buf []byte) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = buf[i+1], buf[i]
	}
}

// fileDumpSink writes each relocated block's compressed and raw bytes
// to <dir>/<old-addr-hex>.mio0 and <dir>/<old-addr-hex>.raw. It is the
// only filesystem-touching implementation of reloc.DumpSink; the core
// relocation engine never imports os.
type fileDumpSink struct {
	dir string
}

func (s fileDumpSink) WriteBlock(old uint32, compressed, raw []byte) error {
	base := filepath.Join(s.dir, fmt.Sprintf("%08X", old))
	if err := os.WriteFile(base+".mio0", compressed, 0o644); err != nil {
		return err
	}
	return os.WriteFile(base+".raw", raw, 0o644)
}
