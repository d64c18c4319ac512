package nes

import "errors"

// Errors returned across the package boundary. Illegal guest memory
// accesses never surface as Go errors — those are open-bus reads or
// masked writes, per the bus's own address decoding.
var (
	// ErrCartridgeFormat is returned by rom.Load/rom.Parse when the byte
	// stream is not a recognizable iNES/NES 2.0 image.
	ErrCartridgeFormat = errors.New("nes: unrecognized cartridge format")

	// ErrMapperUnsupported is returned by Console.Load when the cartridge
	// names a mapper number this emulator has no implementation for.
	ErrMapperUnsupported = errors.New("nes: unsupported mapper")

	// ErrSaveStateIncompatible is returned by Console.LoadState when the
	// envelope's version doesn't match or the payload is malformed. The
	// running console is left untouched.
	ErrSaveStateIncompatible = errors.New("nes: incompatible save state")
)
