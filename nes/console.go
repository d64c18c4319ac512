package nes

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path"
	"strings"
)

// saveStateVersion is bumped whenever the envelope layout or any
// component's serialized field order changes; LoadState rejects any
// other version with ErrSaveStateIncompatible rather than guess at a
// migration.
const saveStateVersion = 1

type saveStateEnvelope struct {
	Version int `json:"version"`

	CPU    []byte `json:"cpu"`
	PPU    []byte `json:"ppu"`
	APU    []byte `json:"apu"`
	Ctrl1  []byte `json:"controller1"`
	Ctrl2  []byte `json:"controller2"`
	Mapper []byte `json:"mapper"`
}

type Console struct {
	cartridge   *Cartridge
	mapper      mapper
	ram         *ram
	cpu         *cpu
	apu         *apu
	ppu         *ppu
	controller1 *controller
	controller2 *controller

	bus *sysBus

	openFiles []*os.File
}

func NewConsole(sampleRate float32, pc uint16, debugOut io.Writer) *Console {
	console := &Console{}
	makeFile := func(channel string) (io.WriteSeeker, error) {
		name := "TODO"
		dir, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		f, err := ioutil.TempFile(dir, strings.TrimSuffix(path.Base(name), path.Ext(name))+"_"+channel+"_*.wav")
		if err != nil {
			return nil, err
		}

		console.openFiles = append(console.openFiles, f)
		return f, nil
	}

	ram := newRam()
	ctrl1 := &controller{}
	ctrl2 := &controller{}

	ppu := newPpu()
	apu := newApu(4096, sampleRate, makeFile)
	cpu := newCpu(debugOut, ppu, apu)

	bus := &sysBus{
		ram:   ram,
		cpu:   cpu,
		apu:   apu,
		ppu:   ppu,
		ctrl1: ctrl1,
		ctrl2: ctrl2,
	}
	apu.bus = bus

	if pc != 0 {
		cpu.setPC(pc)
	}
	cpu.cycles = 7 //TODO

	console.ram = ram
	console.cpu = cpu
	console.apu = apu
	console.ppu = ppu
	console.controller1 = ctrl1
	console.controller2 = ctrl2
	console.bus = bus

	return console
}

func (c *Console) Empty() bool {
	return c.cartridge == nil
}

// Load wires a parsed cartridge into the console: constructs its
// mapper and hands it to the bus and PPU, which route all CPU/PPU
// memory accesses through it from here on.
func (c *Console) Load(cart *Cartridge) error {
	m, err := newMapper(cart)
	if err != nil {
		return err
	}

	first := c.cartridge == nil
	c.cartridge = cart
	c.mapper = m
	c.bus.mapper = m
	c.ppu.mapper = m

	if first {
		c.cpu.init(c.bus)
		return nil
	}

	c.Reset()
	return nil
}

func (c *Console) StartRecording() error {
	return c.apu.mixer.startRecording()
}

func (c *Console) PauseRecording() {
	c.apu.mixer.pauseRecording()
}

func (c *Console) UnpauseRecording() {
	c.apu.mixer.unpauseRecording()
}

func (c *Console) StopRecording() error {
	return c.apu.mixer.stopRecording()
}

func (c *Console) Close() error {
	if err := c.StopRecording(); err != nil {
		return err
	}

	var err error
	for _, f := range c.openFiles {
		err = f.Close()
	}

	return err
}

func (c *Console) Reset() {
	c.cpu.reset(c.bus)
	c.apu.reset()
	c.ppu.reset()
}

// Step runs a single CPU instruction, ticking the PPU and APU alongside
// it, and returns the number of CPU cycles it consumed.
func (c *Console) Step() uint64 {
	if c.Empty() {
		return 0
	}
	return c.cpu.execute(c.bus)
}

func (c *Console) StepFrame() {
	if c.Empty() {
		return
	}

	frame := c.ppu.frame
	for frame == c.ppu.frame {
		c.cpu.execute(c.bus)
	}
}

func (c *Console) Press(ctrl int, button Button) {
	switch ctrl {
	case 0:
		c.controller1.press(button)
	case 1:
		c.controller2.press(button)
	}
}

func (c *Console) Release(ctrl int, button Button) {
	switch ctrl {
	case 0:
		c.controller1.release(button)
	case 1:
		c.controller2.release(button)
	}
}

// SetButton presses or releases one button on one of the two joypad
// ports in a single call.
func (c *Console) SetButton(port int, button Button, pressed bool) {
	if pressed {
		c.Press(port, button)
	} else {
		c.Release(port, button)
	}
}

func (c *Console) Buffer() []byte {
	return c.ppu.buffer
}

// Framebuffer returns the current 256x240 RGBA frame, valid for reading
// between VBlank start and the next StepFrame call.
func (c *Console) Framebuffer() []byte {
	return c.ppu.buffer
}

func (c *Console) AudioChannel() <-chan float32 {
	return c.apu.channel()
}

// AudioSample returns the most recently mixed audio sample, for front
// ends that pull audio once per CPU cycle rather than drain
// AudioChannel.
func (c *Console) AudioSample() float32 {
	return c.apu.sample()
}

func (c *Console) DrawNametables(buf []byte) {
	c.ppu.drawNametables(buf)
}

func (c *Console) DrawPatternTables(buf []byte, palette byte) {
	c.ppu.drawPatternTables(buf, palette)
}

func (c *Console) Read(addr uint16) byte {
	return c.bus.read(addr)
}

func (c *Console) Write(addr uint16, v byte) {
	c.bus.write(addr, v)
}

// SaveState captures CPU, PPU, APU, controller, and mapper state into a
// versioned JSON envelope. The mapper's own state is stored as an
// opaque blob; SaveState never interprets it.
func (c *Console) SaveState() ([]byte, error) {
	env := saveStateEnvelope{
		Version: saveStateVersion,
		CPU:     c.cpu.saveState(),
		PPU:     c.ppu.saveState(),
		APU:     c.apu.saveState(),
		Ctrl1:   c.controller1.saveState(),
		Ctrl2:   c.controller2.saveState(),
	}
	if c.mapper != nil {
		env.Mapper = c.mapper.saveState()
	}
	return json.Marshal(env)
}

// LoadState restores a snapshot produced by SaveState. On any
// incompatibility - version mismatch, malformed envelope, or a
// component rejecting its blob - the running system is left untouched
// and ErrSaveStateIncompatible is returned.
func (c *Console) LoadState(data []byte) (err error) {
	var env saveStateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ErrSaveStateIncompatible
	}
	if env.Version != saveStateVersion {
		return ErrSaveStateIncompatible
	}
	// Components are restored one at a time, so snapshot the running
	// system first and put it back if any component rejects its blob.
	prev, err := c.SaveState()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			c.LoadState(prev)
		}
	}()
	if c.mapper != nil && env.Mapper != nil {
		if err := c.mapper.loadState(env.Mapper); err != nil {
			return err
		}
	}
	if err := c.cpu.loadState(env.CPU); err != nil {
		return err
	}
	if err := c.ppu.loadState(env.PPU); err != nil {
		return err
	}
	if err := c.apu.loadState(env.APU); err != nil {
		return err
	}
	if err := c.controller1.loadState(env.Ctrl1); err != nil {
		return err
	}
	return c.controller2.loadState(env.Ctrl2)
}

// Disassemble routes a nestest-format trace line to out for every
// instruction executed from here on, the same way the teacher's CPU
// writes its trace when constructed with a non-nil debug writer. Pass
// nil to stop tracing.
func (c *Console) Disassemble(out io.Writer) {
	c.cpu.debug = out
}

// TestStatus reads the Blargg-style test-ROM result protocol out of
// PRG RAM: a status byte at $6000 ($80 running, $81 reset required,
// $00 pass, $01-$7F a fail code), a $DE $B0 $61 signature at
// $6001-$6003 confirming the convention is in use, and a NUL-terminated
// ASCII message from $6004. The core never interprets this itself;
// it's a reader for harnesses driving Blargg-family test ROMs.
func (c *Console) TestStatus() (status byte, running bool, message string, ok bool) {
	if c.bus.read(0x6001) != 0xDE || c.bus.read(0x6002) != 0xB0 || c.bus.read(0x6003) != 0x61 {
		return 0, false, "", false
	}

	status = c.bus.read(0x6000)
	running = status == 0x80 || status == 0x81

	var msg bytes.Buffer
	for addr := uint16(0x6004); ; addr++ {
		b := c.bus.read(addr)
		if b == 0 {
			break
		}
		msg.WriteByte(b)
	}

	return status, running, msg.String(), true
}
