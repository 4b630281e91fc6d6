package checksum

import "github.com/snksoft/crc"

// POSIX cksum: CRC-32 with polynomial 0x04C11DB7, processed MSB first, over
// the content followed by its length in as few little-endian bytes as
// needed, complemented.
var cksumTable = crc.NewTable(&crc.Parameters{
	Width:      32,
	Polynomial: 0x04C11DB7,
	ReflectIn:  false,
	ReflectOut: false,
	Init:       0,
	FinalXor:   0xFFFFFFFF,
})

// Cksum returns the value printed by the cksum utility for content.
func Cksum(content []byte) uint32 {
	c := cksumTable.InitCrc()
	c = cksumTable.UpdateCrc(c, content)

	var length []byte
	for n := uint64(len(content)); n != 0; n >>= 8 {
		length = append(length, byte(n))
	}
	c = cksumTable.UpdateCrc(c, length)

	return cksumTable.CRC32(c)
}
