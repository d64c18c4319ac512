package nes

// uxrom implements mapper 2: a switchable 16KB PRG bank at $8000-$BFFF
// selected by writing any value to $8000-$FFFF, and a fixed last 16KB bank
// at $C000-$FFFF. CHR is one fixed 8KB page, writable only when the
// cartridge declares CHR RAM.
type uxrom struct {
	cart *Cartridge
	ram  prgRAM
	bank byte
}

func newUxROM(cart *Cartridge) *uxrom {
	return &uxrom{cart: cart}
}

func (m *uxrom) lastBankOffset() int {
	return len(m.cart.PRG) - prgBankSize16K
}

func (m *uxrom) cpuRead(addr uint16) byte {
	switch {
	case addr >= 0xC000:
		return m.cart.PRG[m.lastBankOffset()+int(addr-0xC000)]
	case addr >= 0x8000:
		return m.cart.PRG[int(m.bank)*prgBankSize16K+int(addr-0x8000)]
	case addr >= 0x6000:
		return m.ram.read(addr)
	}
	return 0
}

func (m *uxrom) cpuWrite(addr uint16, v byte) {
	switch {
	case addr >= 0x8000:
		numBanks := len(m.cart.PRG) / prgBankSize16K
		m.bank = v & byte(numBanks-1)
	case addr >= 0x6000:
		m.ram.write(addr, v)
	}
}

func (m *uxrom) ppuRead(addr uint16) byte {
	return m.cart.CHR[addr%uint16(len(m.cart.CHR))]
}

func (m *uxrom) ppuWrite(addr uint16, v byte) {
	if m.cart.CHRIsRAM {
		m.cart.CHR[addr%uint16(len(m.cart.CHR))] = v
	}
}

func (m *uxrom) mirror() MirrorMode { return m.cart.Mirror }
func (m *uxrom) scanlineTick()      {}
func (m *uxrom) irqPending() bool   { return false }
func (m *uxrom) irqClear()          {}

func (m *uxrom) saveState() []byte {
	return append([]byte{m.bank}, m.ram[:]...)
}

func (m *uxrom) loadState(b []byte) error {
	if len(b) != 1+len(m.ram) {
		return ErrSaveStateIncompatible
	}
	m.bank = b[0]
	copy(m.ram[:], b[1:])
	return nil
}
