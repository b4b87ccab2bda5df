package reloc

import "sm64ext/pkg/rom"

// patchBytecode rewrites every 12-byte bytecode reference in
// buf[rom.LowRegionEnd:scanEnd) that names a table entry, per spec.md
// §4.3.3. Grounded on libsm64.c's sm64_adjust_pointers, which — unlike
// the two classify-time scans — uses a single predicate (byte 2 < 0x02,
// all three command bytes) regardless of direction; this patcher is
// shared verbatim between Extend and Pack for that reason.
func patchBytecode(buf []byte, scanEnd int, table *Table) {
	for addr := rom.LowRegionEnd; addr+12 <= scanEnd; addr += bytecodeStride {
		if !isBytecodeCommand(buf, addr) || buf[addr+2] >= 0x02 {
			continue
		}
		oldPtr := rom.ReadU32BE(buf, addr+4)
		idx := table.Find(oldPtr)
		if idx < 0 {
			continue
		}
		e := table.At(idx)
		if e.New == 0 {
			// Design Notes: a failed decode leaves New/NewEnd at
			// zero; patching it in would corrupt the reference
			// rather than leave it alone.
			continue
		}
		rom.WriteU32BE(buf, addr+4, e.New)
		rom.WriteU32BE(buf, addr+8, e.NewEnd)
		if cb := e.Kind.CommandByte(); cb != 0 && buf[addr] != cb {
			buf[addr] = cb
		}
	}
}

// patchASM rewrites the LUI/LUI/ADDIU/ADDIU halfwords for every
// ASM0xFF entry, per spec.md §4.3.3. Grounded on libsm64.c's
// sm64_adjust_asm.
func patchASM(buf []byte, table *Table) {
	for i := 0; i < table.Len(); i++ {
		e := table.At(i)
		if e.Kind != ASM0xFF || e.New == 0 {
			continue
		}
		addr := int(e.Addr)
		hi, lo := rom.SplitAddr(e.New)
		rom.WriteU16BE(buf, addr+2, hi)
		rom.WriteU16BE(buf, addr+14, lo)

		hiEnd, loEnd := rom.SplitAddr(e.NewEnd)
		rom.WriteU16BE(buf, addr+6, hiEnd)
		rom.WriteU16BE(buf, addr+10, loEnd)
	}
}

// patchReferences runs both patching passes, per spec.md §4.3.3.
func patchReferences(buf []byte, scanEnd int, table *Table) {
	patchBytecode(buf, scanEnd, table)
	patchASM(buf, table)
}
