package cartridge

import (
	"fmt"
	"hash/crc32"
)

const (
	FingerprintLen = 512
	FingerprintLo  = 0x8000
	FingerprintHi  = 0xE000
)

// PRGReader reads program ROM bytes at CPU addresses.
type PRGReader interface {
	ReadPRG(addr uint16, buf []byte) error
}

// Fingerprint is the pair of CRC-32 values the achievement service uses to
// look up the cartridge.
type Fingerprint struct {
	Lo uint32
	Hi uint32
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%08x,%08x", f.Lo, f.Hi)
}

// ReadFingerprint checksums the first 512 bytes at $8000 and at $E000.
func ReadFingerprint(r PRGReader) (f Fingerprint, err error) {
	buf := make([]byte, FingerprintLen)

	if err = r.ReadPRG(FingerprintLo, buf); err != nil {
		return
	}
	f.Lo = crc32.ChecksumIEEE(buf)

	if err = r.ReadPRG(FingerprintHi, buf); err != nil {
		return
	}
	f.Hi = crc32.ChecksumIEEE(buf)
	return
}
