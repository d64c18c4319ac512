package nes

// mmc1 implements mapper 1 (SxROM): a single serial-shift control
// register written one bit at a time over five consecutive cycles, a
// control register selecting mirroring and PRG/CHR bank modes, and two
// CHR bank registers plus one PRG bank register. Standard, well-known
// SxROM semantics (not grounded on a specific pack example; see
// DESIGN.md).
type mmc1 struct {
	cart *Cartridge
	ram  prgRAM

	shift      byte
	shiftCount byte

	control byte // CPPMM: chr mode, prg mode, mirroring
	chr0    byte
	chr1    byte
	prg     byte
}

func newMMC1(cart *Cartridge) *mmc1 {
	return &mmc1{cart: cart, shift: 0x10, control: 0x0C}
}

func (m *mmc1) cpuRead(addr uint16) byte {
	switch {
	case addr >= 0x8000:
		return m.cart.PRG[m.prgOffset(addr)]
	case addr >= 0x6000:
		return m.ram.read(addr)
	}
	return 0
}

func (m *mmc1) prgOffset(addr uint16) int {
	numBanks := len(m.cart.PRG) / prgBankSize16K
	bank := int(m.prg & 0x0F)
	if bank >= numBanks {
		bank %= numBanks
	}

	switch (m.control >> 2) & 3 {
	case 0, 1: // 32KB switch
		bank32 := bank &^ 1
		return bank32*prgBankSize16K + int(addr-0x8000)
	case 2: // fix first bank at $8000, switch $C000
		if addr < 0xC000 {
			return int(addr - 0x8000)
		}
		return bank*prgBankSize16K + int(addr-0xC000)
	default: // 3: switch $8000, fix last bank at $C000
		if addr < 0xC000 {
			return bank*prgBankSize16K + int(addr-0x8000)
		}
		return (numBanks-1)*prgBankSize16K + int(addr-0xC000)
	}
}

func (m *mmc1) cpuWrite(addr uint16, v byte) {
	if addr >= 0x6000 && addr < 0x8000 {
		m.ram.write(addr, v)
		return
	}
	if addr < 0x8000 {
		return
	}

	if v&0x80 != 0 {
		m.shift = 0x10
		m.control |= 0x0C
		return
	}

	complete := m.shift&1 != 0
	m.shift = (m.shift >> 1) | (v&1)<<4
	if !complete {
		return
	}

	value := m.shift
	m.shift = 0x10

	switch {
	case addr < 0xA000:
		m.control = value
	case addr < 0xC000:
		m.chr0 = value
	case addr < 0xE000:
		m.chr1 = value
	default:
		m.prg = value
	}
}

func (m *mmc1) chrBankSize() int {
	if m.control&0x10 != 0 {
		return chrBankSize4K
	}
	return chrBankSize8K
}

func (m *mmc1) chrOffset(addr uint16) int {
	size := len(m.cart.CHR)
	if size == 0 {
		return 0
	}

	if m.chrBankSize() == chrBankSize8K {
		bank := int(m.chr0 &^ 1)
		return (bank * chrBankSize4K + int(addr)) % size
	}

	if addr < 0x1000 {
		return (int(m.chr0)*chrBankSize4K + int(addr)) % size
	}
	return (int(m.chr1)*chrBankSize4K + int(addr-0x1000)) % size
}

func (m *mmc1) ppuRead(addr uint16) byte {
	return m.cart.CHR[m.chrOffset(addr)]
}

func (m *mmc1) ppuWrite(addr uint16, v byte) {
	if m.cart.CHRIsRAM {
		m.cart.CHR[m.chrOffset(addr)] = v
	}
}

func (m *mmc1) mirror() MirrorMode {
	switch m.control & 3 {
	case 0:
		return MirrorSingle0
	case 1:
		return MirrorSingle1
	case 2:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}

func (m *mmc1) scanlineTick()    {}
func (m *mmc1) irqPending() bool { return false }
func (m *mmc1) irqClear()        {}

func (m *mmc1) saveState() []byte {
	b := []byte{m.shift, m.shiftCount, m.control, m.chr0, m.chr1, m.prg}
	return append(b, m.ram[:]...)
}

func (m *mmc1) loadState(b []byte) error {
	const hdr = 6
	if len(b) != hdr+len(m.ram) {
		return ErrSaveStateIncompatible
	}
	m.shift, m.shiftCount, m.control, m.chr0, m.chr1, m.prg = b[0], b[1], b[2], b[3], b[4], b[5]
	copy(m.ram[:], b[hdr:])
	return nil
}
