package nes

// cnrom implements mapper 3: fixed PRG (one 16KB bank mirrored, or two
// fixed banks) and a switchable 8KB CHR bank selected by writing to
// $8000-$FFFF. Some CNROM carts bus-conflict on that write; this
// implementation takes the simpler, conflict-free convention most
// emulators use.
type cnrom struct {
	cart    *Cartridge
	ram     prgRAM
	chrBank byte
}

func newCNROM(cart *Cartridge) *cnrom {
	return &cnrom{cart: cart}
}

func (m *cnrom) cpuRead(addr uint16) byte {
	switch {
	case addr >= 0x8000:
		return m.cart.PRG[int(addr-0x8000)%len(m.cart.PRG)]
	case addr >= 0x6000:
		return m.ram.read(addr)
	}
	return 0
}

func (m *cnrom) cpuWrite(addr uint16, v byte) {
	switch {
	case addr >= 0x8000:
		numBanks := len(m.cart.CHR) / chrBankSize8K
		if numBanks == 0 {
			numBanks = 1
		}
		m.chrBank = v & byte(numBanks-1)
	case addr >= 0x6000:
		m.ram.write(addr, v)
	}
}

func (m *cnrom) ppuRead(addr uint16) byte {
	return m.cart.CHR[int(m.chrBank)*chrBankSize8K+int(addr)]
}

func (m *cnrom) ppuWrite(addr uint16, v byte) {
	if m.cart.CHRIsRAM {
		m.cart.CHR[int(m.chrBank)*chrBankSize8K+int(addr)] = v
	}
}

func (m *cnrom) mirror() MirrorMode { return m.cart.Mirror }
func (m *cnrom) scanlineTick()      {}
func (m *cnrom) irqPending() bool   { return false }
func (m *cnrom) irqClear()          {}

func (m *cnrom) saveState() []byte {
	return append([]byte{m.chrBank}, m.ram[:]...)
}

func (m *cnrom) loadState(b []byte) error {
	if len(b) != 1+len(m.ram) {
		return ErrSaveStateIncompatible
	}
	m.chrBank = b[0]
	copy(m.ram[:], b[1:])
	return nil
}
