package sim

import "nesra/cartridge"

// demoProgram counts in X forever, storing the count to $0010 and $0300 and
// kicking OAM DMA once per iteration.
var demoProgram = []byte{
	0xA2, 0x00,       // $8000 LDX #$00
	0xE8,             // $8002 INX
	0x86, 0x10,       // $8003 STX $10
	0x8E, 0x00, 0x03, // $8005 STX $0300
	0xA9, 0x02,       // $8008 LDA #$02
	0x8D, 0x14, 0x40, // $800A STA $4014
	0x4C, 0x02, 0x80, // $800D JMP $8002
}

// DemoROM builds an NROM-128 cartridge running demoProgram.
func DemoROM() *cartridge.ROM {
	prg := make([]byte, 0x4000)
	copy(prg, demoProgram)
	// NMI, RESET, IRQ vectors all point at $8000
	for _, v := range []int{0x3FFA, 0x3FFC, 0x3FFE} {
		prg[v], prg[v+1] = 0x00, 0x80
	}
	rom, err := cartridge.NewROM(prg)
	if err != nil {
		panic(err)
	}
	return rom
}
