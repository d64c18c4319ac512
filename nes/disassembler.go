package nes

import (
	"fmt"
	"io"
	"strings"
)

// disassemble writes one nestest-format trace line: address, raw opcode
// bytes, mnemonic and operand, then register state and cumulative cycle
// count.
func disassemble(out io.Writer, bus *sysBus,
	instPC uint16, a, x, y, p, sp byte,
	inst instruction, intermediateAddr, resolvedAddr uint16, cycles uint64, _ *ppu) {
	var strlen int

	n, _ := fmt.Fprintf(out, "%04X  ", instPC)
	strlen += n

	if inst.size == 1 {
		n, _ := fmt.Fprintf(out, "%02X      ", inst.opcode)
		strlen += n
	} else if inst.size == 2 {
		n, _ := fmt.Fprintf(out, "%02X %02X   ", inst.opcode, bus.read(instPC+1))
		strlen += n
	} else if inst.size == 3 {
		n, _ := fmt.Fprintf(out, "%02X %02X %02X", inst.opcode, bus.read(instPC+1), bus.read(instPC+2))
		strlen += n
	}

	if inst.illegal {
		n, _ := fmt.Fprint(out, " *")
		strlen += n
	} else {
		n, _ := fmt.Fprint(out, "  ")
		strlen += n
	}

	n, _ = fmt.Fprint(out, inst.name, " ")
	strlen += n

	switch inst.mode {
	case accumulator:
		n, _ := fmt.Fprint(out, "A")
		strlen += n
	case implied:
	default:
		var arg uint16
		switch inst.mode {
		case immediate, zeroPage, zeroPageIndexedX, zeroPageIndexedY, preIndexedIndirect, postIndexedIndirect:
			arg = uint16(bus.read(instPC + 1))
		case absolute, indirect, indexedX, indexedY:
			arg = uint16(bus.read(instPC+1)) | uint16(bus.read(instPC+2))<<8
		case relative:
			arg = resolvedAddr
		}

		n, _ := fmt.Fprintf(out, addressingFormats[inst.mode], arg)
		strlen += n
	}

	if strlen < 48 {
		fmt.Fprint(out, strings.Repeat(" ", 48-strlen))
	}
	fmt.Fprintf(out, "A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d\n", a, x, y, p, sp, cycles)
}

var addressingFormats = map[addressingMode]string{
	immediate:           "#$%02X",    // #aa
	absolute:            "$%04X",     // aaaa
	zeroPage:            "$%02X",     // aa
	implied:             "",          //
	indirect:            "($%04X)",   // (aaaa)
	indexedX:            "$%04X,X",   // aaaa,X
	indexedY:            "$%04X,Y",   // aaaa,Y
	zeroPageIndexedX:    "$%02X,X",   // aa,X
	zeroPageIndexedY:    "$%02X,Y",   // aa,Y
	preIndexedIndirect:  "($%02X,X)", // (aa,X)
	postIndexedIndirect: "($%02X),Y", // (aa),Y
	relative:            "$%04X",     // aaaa
	accumulator:         "A",         // A
}
