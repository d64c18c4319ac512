// Package rom parses iNES cartridge images into an nes.Cartridge ready for
// nes.Console.Load. NES 2.0 images are read through their iNES-compatible
// fields only; the NES 2.0 extended header bytes are ignored.
package rom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/tetranes/nes/nes"
)

const (
	trainerLen  = 512
	prgBankSize = 16 * 1024
	chrBankSize = 8 * 1024
)

const (
	ctrl1Mirror1     = 1 << iota // low bit of mirroring selection
	ctrl1Battery                 // battery-backed PRG RAM
	ctrl1Trainer                // 512-byte trainer present
	ctrl1FourScreen              // ignore mirroring bit, four-screen VRAM
)

var iNESMagic = []byte{'N', 'E', 'S', 0x1A}

type header struct {
	Magic [4]byte

	// Number of 16KB PRG-ROM banks.
	PRGBanks byte

	// Number of 8KB CHR-ROM banks. Zero means the board uses CHR RAM.
	CHRBanks byte

	// 76543210
	// ||||||||
	// |||||||+- Mirroring: 0 horizontal, 1 vertical
	// ||||||+-- battery-backed PRG RAM at $6000-7FFF
	// |||||+--- 512-byte trainer at $7000-$71FF
	// ||||+---- ignore mirroring bit, four-screen VRAM
	// ++++----- lower nybble of mapper number
	Ctrl1 byte

	// 76543210
	// ||||||||
	// |||||||+- VS Unisystem
	// ||||||+-- PlayChoice-10
	// ||||++--- if == 2, flags 8-15 are NES 2.0
	// ++++----- upper nybble of mapper number
	Ctrl2 byte

	// Number of 8KB PRG-RAM banks; 0 means the legacy single 8KB page.
	PRGRAMBanks byte

	_ [7]byte
}

// Load reads an iNES image from path and parses it into a cartridge.
func Load(path string) (*nes.Cartridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rom: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads an iNES image from r into a cartridge, returning
// nes.ErrCartridgeFormat if the header magic doesn't match.
func Parse(r io.Reader) (*nes.Cartridge, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("rom: reading header: %w", err)
	}

	if !bytes.Equal(h.Magic[:], iNESMagic) {
		return nil, nes.ErrCartridgeFormat
	}

	var trainer []byte
	if h.Ctrl1&ctrl1Trainer != 0 {
		trainer = make([]byte, trainerLen)
		if _, err := io.ReadFull(r, trainer); err != nil {
			return nil, fmt.Errorf("rom: reading trainer: %w", err)
		}
	}

	prg := make([]byte, int(h.PRGBanks)*prgBankSize)
	if _, err := io.ReadFull(r, prg); err != nil {
		return nil, fmt.Errorf("rom: reading PRG-ROM: %w", err)
	}

	var chr []byte
	chrIsRAM := h.CHRBanks == 0
	if chrIsRAM {
		chr = make([]byte, chrBankSize)
	} else {
		chr = make([]byte, int(h.CHRBanks)*chrBankSize)
		if _, err := io.ReadFull(r, chr); err != nil {
			return nil, fmt.Errorf("rom: reading CHR-ROM: %w", err)
		}
	}

	mirror := nes.MirrorHorizontal
	if h.Ctrl1&ctrl1Mirror1 != 0 {
		mirror = nes.MirrorVertical
	}
	if h.Ctrl1&ctrl1FourScreen != 0 {
		mirror = nes.MirrorFourScreen
	}

	prgRAMSize := int(h.PRGRAMBanks) * chrBankSize
	if prgRAMSize == 0 {
		prgRAMSize = chrBankSize
	}

	mapper := h.Ctrl1>>4 | h.Ctrl2&0xF0

	return &nes.Cartridge{
		Mapper:     mapper,
		Mirror:     mirror,
		Battery:    h.Ctrl1&ctrl1Battery != 0,
		Trainer:    trainer,
		PRG:        prg,
		CHR:        chr,
		CHRIsRAM:   chrIsRAM,
		PRGRAMSize: prgRAMSize,
	}, nil
}
