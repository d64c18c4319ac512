package nes_test

import (
	"testing"

	"github.com/tetranes/nes/nes"
)

func newTestConsole(t *testing.T, prg []byte) *nes.Console {
	t.Helper()

	full := make([]byte, 32*1024)
	copy(full, prg)
	// Reset vector ($FFFC/$FFFD, PRG offset 0x7FFC/0x7FFD) points at the
	// start of PRG ($8000), where the test program above is laid out.
	full[0x7FFC] = 0x00
	full[0x7FFD] = 0x80

	console := nes.NewConsole(44100, 0, nil)
	cart := &nes.Cartridge{
		Mapper: 0,
		PRG:    full,
		CHR:    make([]byte, 8*1024),
	}
	if err := console.Load(cart); err != nil {
		t.Fatalf("console.Load: %v", err)
	}
	return console
}

func TestCPU_LDA_STA_Absolute(t *testing.T) {
	// LDA $00FF; STA $0000
	prg := []byte{0xAD, 0xFF, 0x00, 0x8D, 0x00, 0x00}
	console := newTestConsole(t, prg)
	console.Write(0x00FF, 42)

	console.Step() // LDA
	console.Step() // STA

	if got := console.Read(0x0000); got != 42 {
		t.Errorf("expected RAM[0x0000] to be 42, got %v", got)
	}
}

func TestCPU_Branch_BEQ(t *testing.T) {
	// LDA #$00; BEQ +2; LDA #$01 (skipped); LDA #$02
	prg := []byte{0xA9, 0x00, 0xF0, 0x02, 0xA9, 0x01, 0xA9, 0x02, 0x8D, 0x00, 0x00}
	console := newTestConsole(t, prg)

	console.Step() // LDA #$00
	console.Step() // BEQ, taken
	console.Step() // LDA #$02
	console.Step() // STA $0000

	if got := console.Read(0x0000); got != 0x02 {
		t.Errorf("expected branch to skip LDA #$01, got RAM[0x0000] = %#02x", got)
	}
}

func TestCPU_StackPushPop(t *testing.T) {
	// LDA #$37; PHA; LDA #$00; PLA; STA $0000
	prg := []byte{0xA9, 0x37, 0x48, 0xA9, 0x00, 0x68, 0x8D, 0x00, 0x00}
	console := newTestConsole(t, prg)

	for i := 0; i < 5; i++ {
		console.Step()
	}

	if got := console.Read(0x0000); got != 0x37 {
		t.Errorf("expected stack roundtrip to restore 0x37, got %#02x", got)
	}
}

func TestCPU_OAMDMA_EvenOddParity(t *testing.T) {
	// Entry cycle count even at the write: opcode+operand reads land the
	// write on an even cycle, so the transfer should cost 513 cycles
	// (3 address-resolution reads + 513 = 516 total for the STA).
	t.Run("even", func(t *testing.T) {
		prg := []byte{0xA9, 0x00, 0x8D, 0x14, 0x40} // LDA #$00; STA $4014
		console := newTestConsole(t, prg)

		console.Step() // LDA #$00

		if got := console.Step(); got != 516 {
			t.Fatalf("expected STA $4014 on an even cycle to cost 516 cycles (513 + 3 addressing reads), got %d", got)
		}
	})

	// One extra read cycle (zero-page LDA) shifts the write onto an odd
	// cycle, so the transfer should cost 514 cycles (517 total).
	t.Run("odd", func(t *testing.T) {
		prg := []byte{0xA5, 0x10, 0x8D, 0x14, 0x40} // LDA $10; STA $4014
		console := newTestConsole(t, prg)

		console.Step() // LDA $10

		if got := console.Step(); got != 517 {
			t.Fatalf("expected STA $4014 on an odd cycle to cost 517 cycles (514 + 3 addressing reads), got %d", got)
		}
	})
}

func TestDMC_PlaysOneSampleThenStops(t *testing.T) {
	// A field of NOPs so the cartridge's reset vector has somewhere to
	// run without falling off the end into BRK; the DMC itself is
	// driven entirely through register writes below, not CPU
	// instructions.
	prg := make([]byte, 0x4000)
	for i := range prg {
		prg[i] = 0xEA
	}
	console := newTestConsole(t, prg)

	// One-byte sample at $C000 (PRG offset 0x4000 of the 32KB image).
	console.Write(0x4012, 0x00) // sample address = $C000 + 0*64
	console.Write(0x4013, 0x00) // sample length  = 0*16 + 1 = 1 byte
	console.Write(0x4010, 0x00) // rate index 0, no loop, no IRQ
	console.Write(0x4011, 0x00) // output level starts at 0

	console.Write(0x4015, 0x10) // enable DMC: starts the one-byte sample

	// bytesRemaining counts bytes left to *fetch*, not bytes left to
	// play back, so the one queued byte is fetched within the first
	// couple of CPU cycles and the active flag drops immediately after -
	// well before the 8 output-unit shifts it takes to finish playing
	// that byte (8 * the rate-0 period of 428 CPU cycles).
	for i := 0; i < 428*9; i++ {
		console.Step()
	}

	if got := console.Read(0x4015) & 0x10; got != 0 {
		t.Fatalf("expected DMC active flag to clear once the one-byte sample is fetched (no loop bit set)")
	}
}

func TestCPU_ZeroFlag(t *testing.T) {
	// LDA #$00; BNE +2 (not taken); LDA #$AA; STA $0000
	prg := []byte{0xA9, 0x00, 0xD0, 0x02, 0xA9, 0xAA, 0x8D, 0x00, 0x00}
	console := newTestConsole(t, prg)

	console.Step() // LDA #$00
	console.Step() // BNE, not taken
	console.Step() // LDA #$AA
	console.Step() // STA $0000

	if got := console.Read(0x0000); got != 0xAA {
		t.Errorf("expected zero flag to suppress the branch, got RAM[0x0000] = %#02x", got)
	}
}
