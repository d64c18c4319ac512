package nes

// mmc3 implements mapper 4 (TxROM): eight bank-select registers switching
// two 8KB PRG windows and CHR in 2x2KB + 4x1KB windows, a mirroring
// latch, PRG-RAM write protect, and a scanline counter that drives an
// IRQ. Bank-register layout and $8000/$8001/$A000/$A001/$C000/$C001/
// $E000/$E001 dispatch are grounded on other_examples' yoshiomiyamae-gones
// mapper4.go. That source tracks IRQ clocking with a precise 3-M2-cycle
// PPU-A12 edge filter; this implementation instead clocks the counter
// once per scanline via scanlineTick, the simplification the design notes
// explicitly allow for ordinary test-suite coverage (see DESIGN.md).
type mmc3 struct {
	cart *Cartridge
	ram  prgRAM

	bankSelect byte
	bankReg    [8]byte
	prgRAMProtect byte
	mirrorLatch byte

	irqLatch   byte
	irqCounter byte
	irqReload  bool
	irqEnabled bool
	irqPending_ bool
}

func newMMC3(cart *Cartridge) *mmc3 {
	return &mmc3{cart: cart}
}

func (m *mmc3) prgBankCount() int {
	return len(m.cart.PRG) / prgBankSize8K
}

func (m *mmc3) prgOffset(bank int, addr uint16, base uint16) int {
	n := m.prgBankCount()
	if n == 0 {
		return 0
	}
	bank %= n
	if bank < 0 {
		bank += n
	}
	return bank*prgBankSize8K + int(addr-base)
}

func (m *mmc3) cpuRead(addr uint16) byte {
	switch {
	case addr >= 0x8000:
		n := m.prgBankCount()
		r6 := int(m.bankReg[6])
		swap := m.bankSelect&0x40 != 0

		var bank int
		switch {
		case addr < 0xA000:
			if swap {
				bank = n - 2
			} else {
				bank = r6
			}
		case addr < 0xC000:
			bank = int(m.bankReg[7])
		case addr < 0xE000:
			if swap {
				bank = r6
			} else {
				bank = n - 2
			}
		default:
			bank = n - 1
		}

		base := addr &^ 0x1FFF
		return m.cart.PRG[m.prgOffset(bank, addr, base)]

	case addr >= 0x6000:
		return m.ram.read(addr)
	}
	return 0
}

func (m *mmc3) cpuWrite(addr uint16, v byte) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		if m.prgRAMProtect&0x40 == 0 || m.prgRAMProtect&0x80 == 0 {
			m.ram.write(addr, v)
		}
		return
	case addr < 0x8000:
		return
	}

	even := addr%2 == 0

	switch {
	case addr < 0xA000:
		if even {
			m.bankSelect = v
		} else {
			m.bankReg[m.bankSelect&7] = v
		}
	case addr < 0xC000:
		if even {
			m.mirrorLatch = v & 1
		}
		// odd: PRG-RAM protect
		if !even {
			m.prgRAMProtect = v
		}
	case addr < 0xE000:
		if even {
			m.irqLatch = v
		} else {
			m.irqReload = true
		}
	default:
		if even {
			m.irqEnabled = false
			m.irqPending_ = false
		} else {
			m.irqEnabled = true
		}
	}
}

func (m *mmc3) chrOffset(addr uint16) int {
	size := len(m.cart.CHR)
	if size == 0 {
		return 0
	}

	invert := m.bankSelect&0x80 != 0
	a := addr
	if invert {
		a ^= 0x1000
	}

	var bank, within int
	switch {
	case a < 0x0800:
		bank = int(m.bankReg[0] &^ 1)
		within = int(a)
	case a < 0x1000:
		bank = int(m.bankReg[1] &^ 1)
		within = int(a - 0x0800)
	case a < 0x1400:
		bank = int(m.bankReg[2])
		within = int(a - 0x1000)
	case a < 0x1800:
		bank = int(m.bankReg[3])
		within = int(a - 0x1400)
	case a < 0x1C00:
		bank = int(m.bankReg[4])
		within = int(a - 0x1800)
	default:
		bank = int(m.bankReg[5])
		within = int(a - 0x1C00)
	}

	return (bank*chrBankSize1K + within) % size
}

func (m *mmc3) ppuRead(addr uint16) byte {
	return m.cart.CHR[m.chrOffset(addr)]
}

func (m *mmc3) ppuWrite(addr uint16, v byte) {
	if m.cart.CHRIsRAM {
		m.cart.CHR[m.chrOffset(addr)] = v
	}
}

func (m *mmc3) mirror() MirrorMode {
	if m.cart.Mirror == MirrorFourScreen {
		return MirrorFourScreen
	}
	if m.mirrorLatch == 0 {
		return MirrorVertical
	}
	return MirrorHorizontal
}

// scanlineTick clocks the IRQ counter once per scanline, standing in for
// the hardware's PPU-A12-rising-edge clock (see the type doc).
func (m *mmc3) scanlineTick() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}

	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending_ = true
	}
}

func (m *mmc3) irqPending() bool { return m.irqPending_ }
func (m *mmc3) irqClear()        { m.irqPending_ = false }

func (m *mmc3) saveState() []byte {
	b := make([]byte, 0, 16+len(m.ram))
	b = append(b, m.bankSelect, m.prgRAMProtect, m.mirrorLatch, m.irqLatch, m.irqCounter)
	b = append(b, boolByte(m.irqReload), boolByte(m.irqEnabled), boolByte(m.irqPending_))
	b = append(b, m.bankReg[:]...)
	return append(b, m.ram[:]...)
}

func (m *mmc3) loadState(b []byte) error {
	const hdr = 8 + 8
	if len(b) != hdr+len(m.ram) {
		return ErrSaveStateIncompatible
	}
	m.bankSelect = b[0]
	m.prgRAMProtect = b[1]
	m.mirrorLatch = b[2]
	m.irqLatch = b[3]
	m.irqCounter = b[4]
	m.irqReload = b[5] != 0
	m.irqEnabled = b[6] != 0
	m.irqPending_ = b[7] != 0
	copy(m.bankReg[:], b[8:16])
	copy(m.ram[:], b[hdr:])
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
