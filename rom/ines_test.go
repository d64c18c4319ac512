package rom

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/tetranes/nes/nes"
)

type check func(*nes.Cartridge) error
type romfn func([]byte) ([]byte, check)

func TestParse(t *testing.T) {
	empty := func([]byte) ([]byte, check) {
		return []byte{}, isNil
	}
	tooShort := func([]byte) ([]byte, check) {
		return []byte{'N', 'E', 'S', 0x1A, 0, 0, 0, 0, 0, 0}, isNil
	}
	invalidMagic1 := func([]byte) ([]byte, check) {
		return []byte{'N', 'O', 'S', 0x1A, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, isNil
	}
	invalidMagic2 := func([]byte) ([]byte, check) {
		return []byte{'N', 'E', 'S', ' ', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, isNil
	}

	tests := []struct {
		name    string
		rom     []romfn
		wantErr bool
	}{
		{name: "empty", rom: []romfn{empty}, wantErr: true},
		{name: "too short", rom: []romfn{tooShort}, wantErr: true},
		{name: "invalidMagic 1", rom: []romfn{invalidMagic1}, wantErr: true},
		{name: "invalidMagic 2", rom: []romfn{invalidMagic2}, wantErr: true},
		{name: "horizontal mirroring", rom: []romfn{withHorizontal}, wantErr: false},
		{name: "vertical mirroring", rom: []romfn{withVertical}, wantErr: false},
		{name: "has battery", rom: []romfn{withBattery}, wantErr: false},
		{name: "no battery", rom: []romfn{withoutBattery}, wantErr: false},
		{name: "has trainer", rom: []romfn{withTrainer}, wantErr: false},
		{name: "no trainer", rom: []romfn{withoutTrainer}, wantErr: false},
		{name: "has four screen", rom: []romfn{withFourScreen}, wantErr: false},
		{name: "no four screen", rom: []romfn{withoutFourScreen}, wantErr: false},
		{name: "with mapper 42", rom: []romfn{withMapper(42)}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rom := []byte{'N', 'E', 'S', 0x1a, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
			var checks []check

			for _, fn := range tt.rom {
				var c check
				rom, c = fn(rom)
				checks = append(checks, c)
			}

			got, err := Parse(bytes.NewBuffer(rom))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			for _, fn := range checks {
				if err := fn(got); err != nil {
					t.Errorf("Parse(): %s", err)
				}
			}
		})
	}
}

func TestParse_MapperRange(t *testing.T) {
	for i := byte(0); i < 255; i++ {
		rom := []byte{'N', 'E', 'S', 0x1a, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
		rom, _ = withMapper(i)(rom)

		got, err := Parse(bytes.NewBuffer(rom))
		if err != nil {
			t.Errorf("Parse() error = %v, wantErr %v", err, nil)
			return
		}

		if got.Mapper != i {
			t.Errorf("Parse(): wanted mapper %v, got %v", i, got.Mapper)
		}
	}
}

func withHorizontal(rom []byte) ([]byte, check) {
	rom[6] = unset(rom[6], ctrl1Mirror1)
	return rom, hasMode(nes.MirrorHorizontal)
}

func withVertical(rom []byte) ([]byte, check) {
	rom[6] = set(rom[6], ctrl1Mirror1)
	return rom, hasMode(nes.MirrorVertical)
}

func withBattery(rom []byte) ([]byte, check) {
	rom[6] = set(rom[6], ctrl1Battery)
	return rom, hasBattery(true)
}

func withoutBattery(rom []byte) ([]byte, check) {
	rom[6] = unset(rom[6], ctrl1Battery)
	return rom, hasBattery(false)
}

func withTrainer(rom []byte) ([]byte, check) {
	rom[6] = set(rom[6], ctrl1Trainer)
	rom = append(rom, make([]byte, trainerLen)...)
	return rom, hasTrainer(true)
}

func withoutTrainer(rom []byte) ([]byte, check) {
	rom[6] = unset(rom[6], ctrl1Trainer)
	return rom, hasTrainer(false)
}

func withFourScreen(rom []byte) ([]byte, check) {
	rom[6] = set(rom[6], ctrl1FourScreen)
	return rom, hasMode(nes.MirrorFourScreen)
}

func withoutFourScreen(rom []byte) ([]byte, check) {
	rom[6] = unset(rom[6], ctrl1FourScreen)
	return rom, func(*nes.Cartridge) error { return nil }
}

func withMapper(m byte) romfn {
	lo := m & 0x0F
	hi := m & 0xF0

	return func(rom []byte) ([]byte, check) {
		rom[6] = (rom[6] & 0x0F) | (lo << 4)
		rom[7] = (rom[7] & 0x0F) | hi
		return rom, hasMapper(m)
	}
}

func isNil(c *nes.Cartridge) error {
	if c != nil {
		return fmt.Errorf("expected cartridge to be nil, got %v", c)
	}
	return nil
}

func hasMode(v nes.MirrorMode) check {
	return func(c *nes.Cartridge) error {
		if c.Mirror != v {
			return fmt.Errorf("expected Mirror to be %v, got %v", v, c.Mirror)
		}
		return nil
	}
}

func hasBattery(v bool) check {
	return func(c *nes.Cartridge) error {
		if c.Battery != v {
			return fmt.Errorf("expected Battery to be %v, got %v", v, c.Battery)
		}
		return nil
	}
}

func hasTrainer(v bool) check {
	var want int
	if v {
		want = trainerLen
	}
	return func(c *nes.Cartridge) error {
		if len(c.Trainer) != want {
			return fmt.Errorf("expected len(trainer) to be %v, got %v", want, len(c.Trainer))
		}
		return nil
	}
}

func hasMapper(v byte) check {
	return func(c *nes.Cartridge) error {
		if c.Mapper != v {
			return fmt.Errorf("expected Mapper to be %v, got %v", v, c.Mapper)
		}
		return nil
	}
}

func set(v byte, mask byte) byte {
	return v | mask
}

func unset(v byte, mask byte) byte {
	return v &^ mask
}
