package nes

import (
	"image/color"
)

// ╔═════════════════╤═══════╤════════════════════════════╤════════════════╗
// ║ Address Range   │ Size  │ Purpose                    │ Kind           ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x0000 - 0x0FFF │ 4096  │ Pattern Table #0           │                ║
// ║╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤ Pattern Tables ║
// ║ 0x1000 - 0x1FFF │ 4096  │ Pattern Table #1           │                ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x2000 - 0x23BF │ 960   │ Name Table #0              │                ║
// ║╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤ Name Table #0  ║
// ║ 0x23C0 - 0x23FF │ 64    │ Attribute Table #0         │                ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x2400 - 0x27BF │ 960   │ Name Table #1              │                ║
// ║╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤ Name Table #1  ║
// ║ 0x27C0 - 0x27FF │ 64    │ Attribute Table #1         │                ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x2800 - 0x2BBF │ 960   │ Name Table #2              │                ║
// ║╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤ Name Table #2  ║
// ║ 0x2BC0 - 0x2BFF │ 64    │ Attribute Table #2         │                ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x2C00 - 0x2FBF │ 960   │ Name Table #3              │                ║
// ║╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤ Name Table #3  ║
// ║ 0x2FC0 - 0x2FFF │ 64    │ Attribute Table #3         │                ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x3000 - 0x3EFF │ 3840  │ Mirror of 0x2000-0x2EFF    │ Mirror         ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x3F00 - 0x3F1F │ 32    │ Palette RAM indexes        │ Palette        ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x3F20 - 0x3FFF │ 224   │ Mirrors of 0x3F00 - 0x3F1F │                ║
// ║╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤ Mirrors        ║
// ║ 0x4000 - 0xFFFF │ 49152 │ Mirrors of 0x0000 - 0x3FFF │                ║
// ╚═════════════════╧═══════╧════════════════════════════╧════════════════╝

var nesPalette [64]color.RGBA = [64]color.RGBA{
	{0x7C, 0x7C, 0x7C, 0xFF}, {0x00, 0x00, 0xFC, 0xFF},
	{0x00, 0x00, 0xBC, 0xFF}, {0x44, 0x28, 0xBC, 0xFF},
	{0x94, 0x00, 0x84, 0xFF}, {0xA8, 0x00, 0x20, 0xFF},
	{0xA8, 0x10, 0x00, 0xFF}, {0x88, 0x14, 0x00, 0xFF},
	{0x50, 0x30, 0x00, 0xFF}, {0x00, 0x78, 0x00, 0xFF},
	{0x00, 0x68, 0x00, 0xFF}, {0x00, 0x58, 0x00, 0xFF},
	{0x00, 0x40, 0x58, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
	{0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
	{0xBC, 0xBC, 0xBC, 0xFF}, {0x00, 0x78, 0xF8, 0xFF},
	{0x00, 0x58, 0xF8, 0xFF}, {0x68, 0x44, 0xFC, 0xFF},
	{0xD8, 0x00, 0xCC, 0xFF}, {0xE4, 0x00, 0x58, 0xFF},
	{0xF8, 0x38, 0x00, 0xFF}, {0xE4, 0x5C, 0x10, 0xFF},
	{0xAC, 0x7C, 0x00, 0xFF}, {0x00, 0xB8, 0x00, 0xFF},
	{0x00, 0xA8, 0x00, 0xFF}, {0x00, 0xA8, 0x44, 0xFF},
	{0x00, 0x88, 0x88, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
	{0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
	{0xF8, 0xF8, 0xF8, 0xFF}, {0x3C, 0xBC, 0xFC, 0xFF},
	{0x68, 0x88, 0xFC, 0xFF}, {0x98, 0x78, 0xF8, 0xFF},
	{0xF8, 0x78, 0xF8, 0xFF}, {0xF8, 0x58, 0x98, 0xFF},
	{0xF8, 0x78, 0x58, 0xFF}, {0xFC, 0xA0, 0x44, 0xFF},
	{0xF8, 0xB8, 0x00, 0xFF}, {0xB8, 0xF8, 0x18, 0xFF},
	{0x58, 0xD8, 0x54, 0xFF}, {0x58, 0xF8, 0x98, 0xFF},
	{0x00, 0xE8, 0xD8, 0xFF}, {0x78, 0x78, 0x78, 0xFF},
	{0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
	{0xFC, 0xFC, 0xFC, 0xFF}, {0xA4, 0xE4, 0xFC, 0xFF},
	{0xB8, 0xB8, 0xF8, 0xFF}, {0xD8, 0xB8, 0xF8, 0xFF},
	{0xF8, 0xB8, 0xF8, 0xFF}, {0xF8, 0xA4, 0xC0, 0xFF},
	{0xF0, 0xD0, 0xB0, 0xFF}, {0xFC, 0xE0, 0xA8, 0xFF},
	{0xF8, 0xD8, 0x78, 0xFF}, {0xD8, 0xF8, 0x78, 0xFF},
	{0xB8, 0xF8, 0xB8, 0xFF}, {0xB8, 0xF8, 0xD8, 0xFF},
	{0x00, 0xFC, 0xFC, 0xFF}, {0xF8, 0xD8, 0xF8, 0xFF},
	{0x00, 0x00, 0x00, 0xFF}, {0x00, 0x00, 0x00, 0xFF},
}

const (
	ppuCtrlPort   uint16 = 0x2000
	ppuMaskPort   uint16 = 0x2001
	ppuStatusPort uint16 = 0x2002
	oamAddrPort   uint16 = 0x2003
	oamDataPort   uint16 = 0x2004
	ppuScrollPort uint16 = 0x2005
	ppuAddrPort   uint16 = 0x2006
	ppuDataPort   uint16 = 0x2007
	oamDMAPort    uint16 = 0x4014
)

// VPHB SINN
// |||| ||||
// |||| ||++- Base nametable address
// |||| ||    (0 = $2000; 1 = $2400; 2 = $2800; 3 = $2C00)
// |||| |+--- VRAM address increment per CPU read/write of PPUDATA
// |||| |     (0: add 1, going across; 1: add 32, going down)
// |||| +---- Sprite pattern table address for 8x8 sprites
// ||||       (0: $0000; 1: $1000; ignored in 8x16 mode)
// |||+------ Background pattern table address (0: $0000; 1: $1000)
// ||+------- Sprite size (0: 8x8 pixels; 1: 8x16 pixels)
// |+-------- PPU master/slave select
// +--------- Generate an NMI at the start of vertical blank
type ppuCtrl byte

const (
	nametableAddress ppuCtrl = 3

	addressIncrement ppuCtrl = 1 << iota * 2

	spritePatternTableAddress

	backgroundPatternTableAddress

	spriteSize

	masterSlaveSelect

	generateNMI
)

// BGRs bMmG
// |||| ||||
// |||| |||+- Greyscale
// |||| ||+-- show background in leftmost 8 pixels
// |||| |+--- show sprites in leftmost 8 pixels
// |||| +---- show background
// |||+------ show sprites
// ||+------- emphasize red
// |+-------- emphasize green
// +--------- emphasize blue
type ppuMask byte

const (
	greyscale ppuMask = 1 << iota
	backgroundClipping
	spriteClipping
	showBackground
	showSprites
	emphasizeRed
	emphasizeGreen
	emphasizeBlue
)

// VSO. ....
// |||+-++++- stale bus contents
// ||+------- sprite overflow
// |+-------- sprite 0 hit
// +--------- vertical blank
type ppuStatus byte

const (
	spriteOverflow ppuStatus = 0x20 << iota
	sprite0Hit
	verticalBlank
)

// ppu implements the 2C02 picture processing unit: the loopy scroll
// registers, background/sprite pixel pipelines, and the memory-mapped
// register file at $2000-$2007/$4014. Background and sprite compositing
// is ported from the teacher's PPU struct, generalized to read CHR/
// nametable mirroring through the mapper interface instead of a
// *Cartridge directly, since several mappers (MMC1, MMC3) change
// mirroring at runtime.
type ppu struct {
	mapper mapper

	ctrl             ppuCtrl
	mask             ppuMask
	status           ppuStatus
	oamAddress       byte
	oamData          [256]byte
	spritesInRange   byte
	secondaryOAMData [32]byte

	readBuffer byte

	dot      int
	scanLine int
	frame    uint64

	paletteData [32]byte
	nametable0  [1024]byte
	nametable1  [1024]byte
	nametable2  [1024]byte
	nametable3  [1024]byte

	v uint16
	t uint16
	x byte
	w byte

	addressBus  uint16
	registerBus byte

	nametableByte byte
	attributeByte byte
	lowTileByte   byte
	highTileByte  byte

	lowTileRegister  uint16
	highTileRegister uint16
	lowAttrRegister  uint16
	highAttrRegister uint16

	sprite0Next bool

	buffer []byte // 256x240 RGBA, row-major
}

func newPpu() *ppu {
	return &ppu{
		buffer: make([]byte, 256*240*4),
	}
}

func (p *ppu) setPixel(x, y int, c color.RGBA) {
	i := (y*256 + x) * 4
	p.buffer[i+0] = c.R
	p.buffer[i+1] = c.G
	p.buffer[i+2] = c.B
	p.buffer[i+3] = c.A
}

func (p *ppu) spritePixel() (pixel, col, priority byte, spriteZero bool) {
	outputX := p.dot - 1
	if p.mask&showSprites == 0 || (outputX < 8 && p.mask&spriteClipping == 0) {
		return 0, 0, 0, false
	}

	for i := byte(0); i < p.spritesInRange; i++ {
		y := p.secondaryOAMData[i*4] + 1
		pattern := uint16(p.secondaryOAMData[i*4+1])
		attr := p.secondaryOAMData[i*4+2]
		x := p.secondaryOAMData[i*4+3]

		pal := attr & 0x03 << 2
		priority := attr >> 5 & 0x01
		flipH := attr>>6&0x01 > 0
		flipV := attr>>7&0x01 > 0

		if outputX < int(x) || outputX > int(x)+7 {
			continue
		}

		patternY := uint16(p.scanLine - int(y))
		patternX := byte(outputX) - x

		rowOffset := patternY
		if flipV {
			rowOffset = 7 - patternY
		}

		patternTable := p.spriteTable()
		patternLo := p.read(patternTable + pattern*16 + rowOffset)
		patternHi := p.read(patternTable + pattern*16 + rowOffset + 8)

		pixOffset := patternX
		if !flipH {
			pixOffset = 7 - patternX
		}

		pixLo := patternLo >> pixOffset & 0x01
		pixHi := patternHi >> pixOffset & 0x01 << 1

		pixel = pixLo | pixHi
		col = pixel | 0x10 | pal

		if pixel == 0 {
			continue
		}

		return pixel, col, priority, p.sprite0Next && i == 0
	}

	return 0, 0, 0, false
}

func (p *ppu) bgPixel() (pixel, col byte) {
	x := p.dot - 1

	if p.mask&showBackground == 0 || (x < 8 && p.mask&backgroundClipping == 0) {
		return 0, 0
	}

	bgPixelLo := byte(p.lowTileRegister >> (15 - p.x) & 0x1)
	bgPixelHi := byte(p.highTileRegister >> (15 - p.x) & 0x1)

	bgAttrLo := byte(p.lowAttrRegister >> (15 - p.x) & 0x1)
	bgAttrHi := byte(p.highAttrRegister >> (15 - p.x) & 0x1)
	attr := bgAttrHi<<1 | bgAttrLo

	pixel = bgPixelHi<<1 | bgPixelLo
	col = pixel | attr<<2
	return pixel, col
}

func (p *ppu) render() {
	bgPixel, bgColor := p.bgPixel()
	spPixel, spColor, priority, szero := p.spritePixel()

	// BG pixel	Sprite pixel	Priority	Output
	// 0			0				X			BG ($3F00)
	// 0			1-3				X			Sprite
	// 1-3			0				X			BG
	// 1-3			1-3				0			Sprite
	// 1-3			1-3				1			BG
	var col byte
	switch {
	case bgPixel == 0 && spPixel == 0:
		col = 0
	case bgPixel == 0 && spPixel != 0:
		col = spColor
	case bgPixel != 0 && spPixel == 0:
		col = bgColor
	case bgPixel != 0 && spPixel != 0 && priority == 0:
		if szero && p.status&sprite0Hit == 0 && p.dot-1 != 255 {
			p.status |= sprite0Hit
		}
		col = spColor
	case bgPixel != 0 && spPixel != 0 && priority == 1:
		if szero && p.status&sprite0Hit == 0 && p.dot-1 != 255 {
			p.status |= sprite0Hit
		}
		col = bgColor
	}

	paletteIdx := p.readPalette(uint16(col))
	p.setPixel(p.dot-1, p.scanLine, nesPalette[paletteIdx])
}

func (p *ppu) tick(c *cpu) {
	renderingEnabled := p.renderingEnabled()
	preRender := p.scanLine == 261
	visibleFrame := p.scanLine < 240
	visibleDot := p.dot > 0 && p.dot < 257
	invisibleDot := p.dot > 320 && p.dot < 341
	opFrame := preRender || visibleFrame
	doOp := renderingEnabled && opFrame
	fetchDot := visibleDot || invisibleDot
	shiftDot := (p.dot > 0 && p.dot < 257) || (p.dot > 320 && p.dot < 337)

	if renderingEnabled && visibleFrame && visibleDot {
		p.render()
	}

	if doOp && shiftDot {
		p.lowTileRegister <<= 1
		p.highTileRegister <<= 1
		p.lowAttrRegister <<= 1
		p.highAttrRegister <<= 1
	}

	if doOp && fetchDot {
		switch (p.dot - 1) % 8 {
		case 0:
			p.addressBus = 0x2000 | (p.v & 0x0FFF)
		case 1:
			p.nametableByte = p.read(p.addressBus)
		case 2:
			p.addressBus = 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
		case 3:
			g := p.v & 0x40 >> 5
			b := p.v & 0x02 >> 1
			shift := (g | b) << 1
			p.attributeByte = p.read(p.addressBus) >> shift & 0x03
		case 4:
			fineY := p.v >> 12 & 0x07
			p.addressBus = p.backgroundTable() + uint16(p.nametableByte)*16 + fineY
		case 5:
			p.lowTileByte = p.read(p.addressBus)
		case 6:
			fineY := p.v >> 12 & 0x07
			p.addressBus = p.backgroundTable() + uint16(p.nametableByte)*16 + fineY + 8
		case 7:
			p.highTileByte = p.read(p.addressBus)

			p.highTileRegister = p.highTileRegister&0xFF00 | uint16(p.highTileByte)
			p.lowTileRegister = p.lowTileRegister&0xFF00 | uint16(p.lowTileByte)

			p.highAttrRegister |= uint16(p.attributeByte >> 1 * 0xFF)
			p.lowAttrRegister |= uint16(p.attributeByte & 0x1 * 0xFF)

			p.incrementX()
		}
	}

	switch {
	case doOp && p.dot == 256:
		p.incrementY()
	case doOp && p.dot == 257:
		p.copyX()
	case renderingEnabled && preRender && p.dot >= 280 && p.dot <= 304:
		p.copyY()
	}

	if renderingEnabled && visibleFrame {
		p.evaluateSprites()
	} else {
		p.spritesInRange = 0
	}

	switch {
	case p.scanLine == 241 && p.dot == 1:
		p.status |= verticalBlank
		if p.ctrl&generateNMI > 0 {
			c.trigger(nmi)
		}
	case preRender && p.dot == 1:
		p.status &^= spriteOverflow
		p.status &^= sprite0Hit
		p.status &^= verticalBlank
	}

	// The scanline counter a bank-switching mapper needs (MMC3's IRQ
	// counter) is driven off PPU-A12 toggling during background/sprite
	// pattern fetches; dot 260 falls inside the sprite-fetch window of
	// every visible and pre-render scanline, so clocking it there once
	// per scanline approximates the hardware edge count closely enough
	// for the mappers this module supports.
	if doOp && p.dot == 260 && p.ctrl&(backgroundPatternTableAddress|spritePatternTableAddress) != 0 {
		p.mapper.scanlineTick()
	}

	switch {
	case p.dot == 340 && preRender:
		p.dot = 0
		p.scanLine = 0
		p.frame++
	case p.dot == 340:
		p.dot = 0
		p.scanLine++
	default:
		p.dot++
	}
}

func (p *ppu) evaluateSprites() {
	if p.dot == 256 {
		p.spritesInRange = 0
		p.sprite0Next = false
		secAddress := 0

		for i := 0; i < 64; i++ {
			y := p.oamData[i*4]
			row := p.scanLine - int(y)

			if row < 0 || row > 7 {
				continue
			}

			if p.spritesInRange < 8 {
				p.secondaryOAMData[secAddress*4] = p.oamData[i*4]
				p.secondaryOAMData[secAddress*4+1] = p.oamData[i*4+1]
				p.secondaryOAMData[secAddress*4+2] = p.oamData[i*4+2]
				p.secondaryOAMData[secAddress*4+3] = p.oamData[i*4+3]
				secAddress++
			}
			if i == 0 {
				p.sprite0Next = true
			}
			p.spritesInRange++
		}
		if p.spritesInRange > 8 {
			p.spritesInRange = 8
			p.status |= spriteOverflow
		}
	}
}

func (p *ppu) readPort(address uint16, c *cpu) byte {
	if address < 0x4000 {
		address = (address-0x2000)%0x08 + 0x2000
	}

	switch address {
	case ppuStatusPort:
		result := p.registerBus&0x1F | byte(p.status)
		p.status &^= verticalBlank
		p.w = 0
		return result

	case oamDataPort:
		v := p.oamData[p.oamAddress]
		p.registerBus = v
		return v

	case ppuDataPort:
		var ret byte
		if p.v >= 0x3F00 && p.v <= 0x3FFF {
			ret = p.read(p.v)
			// Reading palette memory still advances the internal read
			// buffer with the nametable mirror beneath it.
			p.readBuffer = p.read(p.v - 0x1000)
		} else if p.v < 0x3F00 {
			ret = p.readBuffer
			p.readBuffer = p.read(p.v)
		}

		p.incrementV()

		p.registerBus = ret
		return ret
	}

	return p.registerBus
}

func (p *ppu) writePort(address uint16, value byte, c *cpu) {
	if address < 0x4000 {
		address = (address-0x2000)%0x08 + 0x2000
	}
	if address != oamDMAPort {
		p.registerBus = value
	}

	switch address {
	case ppuCtrlPort:
		p.ctrl = ppuCtrl(value)
		d := uint16(value)
		p.t = p.t&0xF3FF | d&0x3<<10

	case ppuMaskPort:
		p.mask = ppuMask(value)

	case oamAddrPort:
		p.oamAddress = value

	case oamDataPort:
		if p.currentlyRendering() {
			return
		}
		p.oamData[p.oamAddress] = value
		p.oamAddress++

	case ppuScrollPort:
		d := uint16(value)
		if p.w == 0 {
			p.t = p.t&0xFFE0 | d>>3
			p.x = value & 0x07
			p.w = 1
		} else {
			fineY := d & 0x07 << 12
			coarseY := d & 0xF8 << 2
			p.t = p.t&0x8C1F | fineY | coarseY
			p.w = 0
		}

	case ppuAddrPort:
		d := uint16(value)
		if p.w == 0 {
			p.w = 1
			p.t = p.t&0xC0FF | d&0x3F<<8
			p.t &^= 0x4000
		} else {
			p.t = p.t&0xFF00 | d
			p.v = p.t
			p.w = 0
		}

	case ppuDataPort:
		p.write(p.v, value)
		p.incrementV()

	case oamDMAPort:
		p.oamData[p.oamAddress] = value
		p.oamAddress++
	}
}

func (p *ppu) read(address uint16) byte {
	address %= 0x4000
	switch {
	case address < 0x2000:
		return p.mapper.ppuRead(address)
	case address < 0x3F00:
		return p.readNametable(0x2000 | address&0x0FFF)
	default:
		return p.readPalette(address)
	}
}

func (p *ppu) write(address uint16, value byte) {
	address %= 0x4000
	switch {
	case address < 0x2000:
		p.mapper.ppuWrite(address, value)
	case address < 0x3F00:
		p.writeNametable(0x2000|address&0x0FFF, value)
	default:
		p.writePalette(address, value)
	}
}

func (p *ppu) readPalette(address uint16) byte {
	switch address {
	case 0x3F10, 0x3F14, 0x3F18, 0x3F1C:
		address -= 0x10
	}
	return p.paletteData[address%32]
}

func (p *ppu) writePalette(address uint16, value byte) {
	switch address {
	case 0x3F10, 0x3F14, 0x3F18, 0x3F1C:
		address -= 0x10
	}
	p.paletteData[address%32] = value
}

func (p *ppu) readNametable(addr uint16) byte {
	switch p.mapper.mirror() {
	case MirrorHorizontal:
		if addr < 0x2800 {
			return p.nametable0[addr%1024]
		}
		return p.nametable2[addr%1024]
	case MirrorVertical:
		if addr < 0x2400 || (addr >= 0x2800 && addr < 0x2C00) {
			return p.nametable0[addr%1024]
		}
		return p.nametable1[addr%1024]
	case MirrorSingle0:
		return p.nametable0[addr%1024]
	case MirrorSingle1:
		return p.nametable1[addr%1024]
	default: // MirrorFourScreen
		switch {
		case addr < 0x2400:
			return p.nametable0[addr%1024]
		case addr < 0x2800:
			return p.nametable1[addr%1024]
		case addr < 0x2C00:
			return p.nametable2[addr%1024]
		default:
			return p.nametable3[addr%1024]
		}
	}
}

func (p *ppu) writeNametable(addr uint16, val byte) {
	switch p.mapper.mirror() {
	case MirrorHorizontal:
		if addr < 0x2800 {
			p.nametable0[addr%1024] = val
			p.nametable1[addr%1024] = val
		} else {
			p.nametable2[addr%1024] = val
			p.nametable3[addr%1024] = val
		}
	case MirrorVertical:
		if addr < 0x2400 || (addr >= 0x2800 && addr < 0x2C00) {
			p.nametable0[addr%1024] = val
			p.nametable2[addr%1024] = val
		} else {
			p.nametable1[addr%1024] = val
			p.nametable3[addr%1024] = val
		}
	case MirrorSingle0:
		p.nametable0[addr%1024] = val
	case MirrorSingle1:
		p.nametable1[addr%1024] = val
	default: // MirrorFourScreen
		switch {
		case addr < 0x2400:
			p.nametable0[addr%1024] = val
		case addr < 0x2800:
			p.nametable1[addr%1024] = val
		case addr < 0x2C00:
			p.nametable2[addr%1024] = val
		default:
			p.nametable3[addr%1024] = val
		}
	}
}

func (p *ppu) incrementV() {
	if p.ctrl&addressIncrement > 0 {
		p.v += 32
	} else {
		p.v += 1
	}
}

// The coarse X component of v needs to be incremented when the next tile
// is reached. Bits 0-4 are incremented, with overflow toggling bit 10.
func (p *ppu) incrementX() {
	coarseX := p.v & 0x001F

	if coarseX == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
		return
	}

	p.v += 1
}

func (p *ppu) copyX() {
	p.v = p.v&^0x041F | p.t&0x041F
}

// If rendering is enabled, fine Y is incremented at dot 256 of each
// scanline, overflowing to coarse Y, and wrapping among the nametables
// vertically. Bits 12-14 are fine Y, bits 5-9 coarse Y, bit 11 the
// vertical nametable.
func (p *ppu) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}

	p.v &^= 0x7000

	coarseY := (p.v & 0x03E0) >> 5

	if coarseY == 29 {
		coarseY = 0
		p.v ^= 0x0800
	} else if coarseY == 31 {
		coarseY = 0
	} else {
		coarseY += 1
	}

	p.v = p.v&^0x03E0 | coarseY<<5
}

func (p *ppu) copyY() {
	p.v = p.v&^0x7BE0 | p.t&0x7BE0
}

func (p *ppu) backgroundTable() uint16 {
	if p.ctrl&backgroundPatternTableAddress > 0 {
		return 0x1000
	}
	return 0x0000
}

func (p *ppu) spriteTable() uint16 {
	if p.ctrl&spritePatternTableAddress > 0 {
		return 0x1000
	}
	return 0x0000
}

func (p *ppu) renderingEnabled() bool {
	return p.mask&showBackground > 0 || p.mask&showSprites > 0
}

func (p *ppu) currentlyRendering() bool {
	return p.renderingEnabled() && (p.scanLine < 240 || p.scanLine == 261)
}

func (p *ppu) drawPatternTables(buf []byte, pal byte) {
	setPixel := func(x, y int, c color.RGBA) {
		i := (y*256 + x) * 4
		buf[i+0] = c.R
		buf[i+1] = c.G
		buf[i+2] = c.B
		buf[i+3] = c.A
	}

	draw := func(table uint16, xoffset int) {
		for y := 0; y < 128; y++ {
			coarseY := y / 8
			fineY := uint16(y % 8)
			for tile := 0; tile < 16; tile++ {
				fineX := tile * 8
				patternNum := uint16(coarseY*16 + tile)

				patternLo := p.read(table + patternNum*16 + fineY)
				patternHi := p.read(table + patternNum*16 + fineY + 8)

				for pixel := 0; pixel < 8; pixel++ {
					pixello := patternLo & 0x80 >> 7
					pixelhi := patternHi & 0x80 >> 6
					patternLo <<= 1
					patternHi <<= 1
					paletteIndex := p.paletteData[uint16(pal)<<2|uint16(pixello|pixelhi)]
					setPixel(xoffset+fineX+pixel, y, nesPalette[paletteIndex])
				}
			}
		}
	}

	draw(0x0000, 0)
	draw(0x1000, 128)
}

func (p *ppu) drawNametables(buf []byte) {
	setPixel := func(x, y int, c color.RGBA) {
		i := (y*512 + x) * 4
		buf[i+0] = c.R
		buf[i+1] = c.G
		buf[i+2] = c.B
		buf[i+3] = c.A
	}

	draw := func(nametable, offsetX, offsetY uint16) {
		patternTable := p.backgroundTable()

		for y := uint16(0); y < 240; y++ {
			tileY := uint16(y / 8)

			patternY := uint16(y % 8)
			for tile := uint16(0); tile < 32; tile++ {
				nametableAddr := tileY*32 + tile
				tileX := tile * 8

				patternNum := uint16(p.read(nametable + nametableAddr))

				patternLo := p.read(patternTable + patternNum*16 + patternY)
				patternHi := p.read(patternTable + patternNum*16 + patternY + 8)

				attribute := p.read(nametable + 960 + (tileY/4)*8 + tile/4)

				top := tileY%4/2 == 0
				bot := tileY%4/2 == 1
				left := tile%4/2 == 0
				right := tile%4/2 == 1

				switch {
				case top && left:
					attribute = attribute >> 0 & 0x03 << 2
				case top && right:
					attribute = attribute >> 2 & 0x03 << 2
				case bot && left:
					attribute = attribute >> 4 & 0x03 << 2
				case bot && right:
					attribute = attribute >> 6 & 0x03 << 2
				}

				for pixel := uint16(0); pixel < 8; pixel++ {
					pixello := patternLo & 0x80 >> 7
					pixelhi := patternHi & 0x80 >> 6
					patternLo <<= 1
					patternHi <<= 1
					col := p.paletteData[attribute|pixello|pixelhi]
					setPixel(int(offsetX+tileX+pixel), int(offsetY+y), nesPalette[col])
				}
			}
		}
	}

	draw(0x2000, 0, 0)
	draw(0x2400, 256, 0)
	draw(0x2800, 0, 240)
	draw(0x2C00, 256, 240)
}

func (p *ppu) reset() {
	p.ctrl = 0
	p.mask = 0
	p.w = 0
	p.v = 0
	p.t = 0
}

func (p *ppu) saveState() []byte {
	b := make([]byte, 0, 64+len(p.paletteData)+4*1024+256)
	b = append(b, byte(p.ctrl), byte(p.mask), byte(p.status), p.oamAddress, p.readBuffer)
	b = append(b, byte(p.v>>8), byte(p.v), byte(p.t>>8), byte(p.t), p.x, p.w)
	b = appendUint16(b, uint16(p.dot))
	b = appendUint16(b, uint16(p.scanLine))
	b = appendUint64(b, p.frame)
	b = append(b, p.oamData[:]...)
	b = append(b, p.paletteData[:]...)
	b = append(b, p.nametable0[:]...)
	b = append(b, p.nametable1[:]...)
	b = append(b, p.nametable2[:]...)
	b = append(b, p.nametable3[:]...)
	return b
}

func (p *ppu) loadState(b []byte) error {
	const hdr = 5 + 6 + 2 + 2 + 8
	tableSize := len(p.oamData) + len(p.paletteData) + 4*1024
	if len(b) != hdr+tableSize {
		return ErrSaveStateIncompatible
	}
	p.ctrl = ppuCtrl(b[0])
	p.mask = ppuMask(b[1])
	p.status = ppuStatus(b[2])
	p.oamAddress = b[3]
	p.readBuffer = b[4]
	p.v = uint16(b[5])<<8 | uint16(b[6])
	p.t = uint16(b[7])<<8 | uint16(b[8])
	p.x = b[9]
	p.w = b[10]
	p.dot = int(uint16(b[11])<<8 | uint16(b[12]))
	p.scanLine = int(uint16(b[13])<<8 | uint16(b[14]))
	var frame uint64
	for i := 0; i < 8; i++ {
		frame = frame<<8 | uint64(b[15+i])
	}
	p.frame = frame

	off := hdr
	off += copy(p.oamData[:], b[off:])
	off += copy(p.paletteData[:], b[off:])
	off += copy(p.nametable0[:], b[off:])
	off += copy(p.nametable1[:], b[off:])
	off += copy(p.nametable2[:], b[off:])
	copy(p.nametable3[:], b[off:])
	return nil
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

func appendUint64(b []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		b = append(b, byte(v>>(8*uint(i))))
	}
	return b
}
