package nes

// MirrorMode selects how the PPU's two physical 1KB nametables are mapped
// onto the four logical $2000/$2400/$2800/$2C00 nametable slots.
type MirrorMode int

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingle0
	MirrorSingle1
	MirrorFourScreen
)

// Cartridge is the parsed, in-memory form of a cartridge image: raw PRG/CHR
// banks plus the handful of header fields a mapper needs to configure
// itself. rom.Load/rom.Parse builds one of these from an iNES/NES 2.0 byte
// stream; Console.Load turns it into a running mapper.
type Cartridge struct {
	Mapper  byte
	Mirror  MirrorMode
	Battery bool

	Trainer []byte
	PRG     []byte
	CHR     []byte
	// CHRIsRAM is true when the header declared zero CHR banks, meaning
	// CHR is writable RAM backed by a single allocated 8KB page rather
	// than ROM data read from the image.
	CHRIsRAM bool

	// PRGRAMSize is the size in bytes of the cartridge's battery-backed or
	// scratch PRG-RAM, as declared by the header (0 means the one legacy
	// 8KB page assumed for pre-NES-2.0 images).
	PRGRAMSize int
}
