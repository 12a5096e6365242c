package cartridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	headerSize  = 16
	trainerSize = 512
	prgBankSize = 0x4000
	chrBankSize = 0x2000
)

var (
	ErrBadHeader = errors.New("cartridge: bad iNES header")
	ErrNoPRG     = errors.New("cartridge: no PRG-ROM")
)

var magic = []byte("NES\x1A")

type Header struct {
	PRGBanks int
	CHRBanks int
	Mapper   uint8
	Mirror   uint8
	Battery  bool
	Trainer  bool
}

// ROM is a cartridge image as seen from the CPU side of the slot.
type ROM struct {
	Header Header
	PRG    []byte
	CHR    []byte
}

func ParseINES(b []byte) (*ROM, error) {
	if len(b) < headerSize || !bytes.Equal(b[:4], magic) {
		return nil, ErrBadHeader
	}

	h := Header{
		PRGBanks: int(b[4]),
		CHRBanks: int(b[5]),
		Mapper:   b[6]>>4 | b[7]&0xF0,
		Mirror:   b[6] & 1,
		Battery:  b[6]&2 != 0,
		Trainer:  b[6]&4 != 0,
	}
	if h.PRGBanks == 0 {
		return nil, ErrNoPRG
	}

	off := headerSize
	if h.Trainer {
		off += trainerSize
	}
	prgEnd := off + h.PRGBanks*prgBankSize
	chrEnd := prgEnd + h.CHRBanks*chrBankSize
	if len(b) < chrEnd {
		return nil, fmt.Errorf("%w: truncated: have %d bytes, need %d", ErrBadHeader, len(b), chrEnd)
	}

	return &ROM{
		Header: h,
		PRG:    b[off:prgEnd],
		CHR:    b[prgEnd:chrEnd],
	}, nil
}

func Load(path string) (*ROM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cartridge: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("cartridge: read %s: %w", path, err)
	}
	return ParseINES(b)
}

// NewROM wraps a bare PRG image as an NROM cartridge.
func NewROM(prg []byte) (*ROM, error) {
	if len(prg) == 0 || len(prg)%prgBankSize != 0 {
		return nil, fmt.Errorf("%w: PRG size %#x", ErrNoPRG, len(prg))
	}
	return &ROM{
		Header: Header{PRGBanks: len(prg) / prgBankSize},
		PRG:    prg,
	}, nil
}

// Read returns the PRG byte at CPU address addr ($8000-$FFFF) with the
// power-on bank layout: the first 16K at $8000 and the last 16K at $C000.
// NROM-128 images are mirrored.
func (r *ROM) Read(addr uint16) byte {
	if addr < 0x8000 {
		return 0
	}
	off := int(addr - 0x8000)
	if len(r.PRG) <= 2*prgBankSize {
		return r.PRG[off%len(r.PRG)]
	}
	if off >= prgBankSize {
		return r.PRG[len(r.PRG)-2*prgBankSize+off]
	}
	return r.PRG[off]
}

// ReadPRG implements PRGReader.
func (r *ROM) ReadPRG(addr uint16, buf []byte) error {
	for i := range buf {
		a := uint32(addr) + uint32(i)
		if a < 0x8000 || a > 0xFFFF {
			return fmt.Errorf("cartridge: PRG read at $%04X out of range", a)
		}
		buf[i] = r.Read(uint16(a))
	}
	return nil
}
