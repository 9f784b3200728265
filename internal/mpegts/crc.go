package mpegts

import "sync"

// crcTable is the MPEG-2 CRC-32 table: polynomial 0x04C11DB7, MSB first,
// no reflection and no final XOR. hash/crc32 only does the reflected form.
var crcTable = sync.OnceValue(func() *[256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i) << 24
		for range 8 {
			if c&(1<<31) != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return &t
})

// SectionCRC32 returns the MPEG-2 CRC-32 of data. Appending the result in
// big-endian order to a section body gives a section whose CRC over the
// whole is zero.
func SectionCRC32(data []byte) uint32 {
	t := crcTable()
	crc := ^uint32(0)
	for _, b := range data {
		crc = crc<<8 ^ t[byte(crc>>24)^b]
	}
	return crc
}
