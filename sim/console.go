// Package sim runs NES program code on a 65C816 core in emulation mode and
// turns every CPU access into a captured cartridge-edge bus word.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/alttpo/snes/emulator/bus"
	"github.com/alttpo/snes/emulator/cpu65c816"

	nesbus "nesra/bus"
	"nesra/cartridge"
)

// maxIdleSteps bounds how many instructions may run without touching the bus.
const maxIdleSteps = 1024

// ctxCheckSteps is how many instructions run between cancellation checks.
const ctxCheckSteps = 256

var ErrStalled = errors.New("sim: cpu stopped accessing the bus")

// Console is a minimal NES: 2K internal RAM mirrored to $1FFF, registers at
// $2000-$5FFF, 8K PRG-RAM at $6000 and the cartridge's PRG-ROM at $8000.
// Console is not safe for concurrent use.
type Console struct {
	Bus *bus.Bus
	CPU *cpu65c816.CPU

	RAM    [0x800]byte
	PRGRAM [0x2000]byte
	IO     [0x4000]byte

	rom *cartridge.ROM

	trace  []uint32
	cycles uint64
	steps  uint64
}

func New(rom *cartridge.ROM) (c *Console, err error) {
	c = &Console{rom: rom}

	c.Bus, err = bus.NewWithSizeHint(4)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	if err = c.Bus.Attach(&ram{c}, "ram", 0x0000, 0x1FFF); err != nil {
		return nil, fmt.Errorf("sim: attach ram: %w", err)
	}
	if err = c.Bus.Attach(&regs{c}, "regs", 0x2000, 0x5FFF); err != nil {
		return nil, fmt.Errorf("sim: attach regs: %w", err)
	}
	if err = c.Bus.Attach(&prgRAM{c}, "prgram", 0x6000, 0x7FFF); err != nil {
		return nil, fmt.Errorf("sim: attach prgram: %w", err)
	}
	if err = c.Bus.Attach(&prgROM{c}, "prgrom", 0x8000, 0xFFFF); err != nil {
		return nil, fmt.Errorf("sim: attach prgrom: %w", err)
	}

	c.CPU, err = cpu65c816.New(c.Bus)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	c.Reset()
	return c, nil
}

// Reset clears RAM and restarts the CPU at the reset vector.
func (c *Console) Reset() {
	c.RAM = [0x800]byte{}
	c.trace = c.trace[:0]
	c.CPU.Reset()
	// 8-bit accumulator and index registers, as on a 6502
	c.CPU.SetFlags(0x30)
	c.SetPC(uint16(c.rom.Read(0xFFFC)) | uint16(c.rom.Read(0xFFFD))<<8)
	// the vector fetch is not part of the captured program trace
	c.trace = c.trace[:0]
}

func (c *Console) SetPC(pc uint16) {
	c.CPU.RK = 0
	c.CPU.PC = pc
}

func (c *Console) GetPC() uint16 { return c.CPU.PC }

func (c *Console) Cycles() uint64 { return c.cycles }

func (c *Console) emit(address uint32, data byte, read bool) {
	c.trace = append(c.trace, nesbus.Encode(uint16(address), data, read))
}

// Step executes one instruction and returns the bus words it produced.
func (c *Console) Step() []uint32 {
	c.trace = c.trace[:0]
	n, _ := c.CPU.Step()
	c.cycles += uint64(n)
	c.steps++
	return c.trace
}

// ReadWords implements bus.Source by running the CPU until dst is full or ctx is done.
func (c *Console) ReadWords(ctx context.Context, dst []uint32) (int, error) {
	n := 0
	idle := 0
	for i := 0; n < len(dst); i++ {
		if i%ctxCheckSteps == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		words := c.Step()
		if len(words) == 0 {
			if idle++; idle > maxIdleSteps {
				return n, ErrStalled
			}
			continue
		}
		idle = 0
		// a partially copied instruction is dropped; the sampler treats it as lost capture.
		n += copy(dst[n:], words)
	}
	return n, nil
}

type ram struct{ c *Console }

func (m *ram) Read(address uint32) byte {
	v := m.c.RAM[address&0x7FF]
	m.c.emit(address, v, true)
	return v
}

func (m *ram) Write(address uint32, value byte) {
	m.c.RAM[address&0x7FF] = value
	m.c.emit(address, value, false)
}

func (m *ram) Shutdown() {}
func (m *ram) Size() uint32 { return 0x2000 }
func (m *ram) Clear() { m.c.RAM = [0x800]byte{} }
func (m *ram) Dump(address uint32) []byte { return nil }

type regs struct{ c *Console }

const ppuStatus = 0x2002

func (m *regs) Read(address uint32) byte {
	a := address & 0xFFFF
	v := m.c.IO[a-0x2000]
	if a&0xE007 == ppuStatus {
		// report vblank on every read so wait loops make progress
		v = 0x80
	}
	m.c.emit(a, v, true)
	return v
}

func (m *regs) Write(address uint32, value byte) {
	a := address & 0xFFFF
	m.c.IO[a-0x2000] = value
	m.c.emit(a, value, false)
}

func (m *regs) Shutdown() {}
func (m *regs) Size() uint32 { return 0x4000 }
func (m *regs) Clear() { m.c.IO = [0x4000]byte{} }
func (m *regs) Dump(address uint32) []byte { return nil }

type prgRAM struct{ c *Console }

func (m *prgRAM) Read(address uint32) byte {
	a := address & 0xFFFF
	v := m.c.PRGRAM[a-0x6000]
	m.c.emit(a, v, true)
	return v
}

func (m *prgRAM) Write(address uint32, value byte) {
	a := address & 0xFFFF
	m.c.PRGRAM[a-0x6000] = value
	m.c.emit(a, value, false)
}

func (m *prgRAM) Shutdown() {}
func (m *prgRAM) Size() uint32 { return 0x2000 }
func (m *prgRAM) Clear() { m.c.PRGRAM = [0x2000]byte{} }
func (m *prgRAM) Dump(address uint32) []byte { return nil }

type prgROM struct{ c *Console }

func (m *prgROM) Read(address uint32) byte {
	a := uint16(address)
	v := m.c.rom.Read(a)
	m.c.emit(uint32(a), v, true)
	return v
}

// Write reaches the mapper; NROM ignores it but it is still a bus cycle.
func (m *prgROM) Write(address uint32, value byte) {
	m.c.emit(address&0xFFFF, value, false)
}

func (m *prgROM) Shutdown() {}
func (m *prgROM) Size() uint32 { return 0x8000 }
func (m *prgROM) Clear() {}
func (m *prgROM) Dump(address uint32) []byte { return nil }
