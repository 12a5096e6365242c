package registry

// DiscoveryReader records every read issued against it and returns zeroes.
type DiscoveryReader struct {
	R *Registry
}

func (d DiscoveryReader) ReadMemory(address uint32, buf []byte) uint32 {
	d.R.Record(address, uint32(len(buf)))
	for i := range buf {
		buf[i] = 0
	}
	return uint32(len(buf))
}

// LiveReader serves reads from the snapshot. Bytes whose address is not watched read as zero.
type LiveReader struct {
	R *Registry
}

func (l LiveReader) ReadMemory(address uint32, buf []byte) uint32 {
	for j := range buf {
		if i, ok := l.R.Index(address + uint32(j)); ok {
			buf[j] = l.R.data[i]
		} else {
			buf[j] = 0
		}
	}
	return uint32(len(buf))
}
