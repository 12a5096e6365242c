package bus

// A captured bus word holds one sample of the cartridge edge connector:
//
//	bits  0-7   D0-D7
//	bits  8-22  A0-A14
//	bit  23     M2
//	bit  24     /ROMSEL
//	bit  25     R/W (1 = read, 0 = write)
const (
	dataMask    = 0xFF
	addressMask = 0x7FFF
	addressBit  = 8
	m2Bit       = 23
	romselBit   = 24
	rwBit       = 25
)

// Sample is one decoded bus cycle.
type Sample struct {
	Address uint16
	Data    uint8
	Read    bool
}

func Decode(w uint32) Sample {
	return Sample{
		Address: uint16((w >> addressBit) & addressMask),
		Data:    uint8(w & dataMask),
		Read:    (w>>rwBit)&1 == 1,
	}
}

// Encode builds a bus word for a CPU access; used by simulated sources and tests.
// A15 is not wired to the cartridge edge so it is folded into /ROMSEL (active low while M2 is high).
func Encode(address uint16, data uint8, read bool) uint32 {
	w := uint32(data) | uint32(address&addressMask)<<addressBit | 1<<m2Bit
	if address&0x8000 == 0 {
		w |= 1 << romselBit
	}
	if read {
		w |= 1 << rwBit
	}
	return w
}
