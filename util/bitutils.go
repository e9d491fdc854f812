package util

import (
	"strconv"
	"strings"
)

// ToBinaryString renders a byte most significant bit first.
func ToBinaryString(data byte) string {
	result := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		move := uint(7 - i)
		result = append(result, strconv.Itoa(int((data>>move)&1)))
	}
	return strings.Join(result, "")
}

// BitmapString renders a null bitmap byte by byte, separated by spaces.
func BitmapString(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = ToBinaryString(b)
	}
	return strings.Join(parts, " ")
}

// SetRecBits stores the low length bits of bits at bit offset ofs of ptr,
// spilling into ptr[1] when they cross the byte boundary.
func SetRecBits(ptr []byte, ofs uint8, length uint8, bits byte) {
	if length == 0 {
		return
	}
	bits &= byte((1 << length) - 1)
	ptr[0] = (ptr[0] &^ (byte((1<<length)-1) << ofs)) | (bits << ofs)
	if ofs+length > 8 {
		spill := ofs + length - 8
		ptr[1] = (ptr[1] &^ byte((1<<spill)-1)) | (bits >> (8 - ofs))
	}
}

// GetRecBits reads back what SetRecBits stored.
func GetRecBits(ptr []byte, ofs uint8, length uint8) byte {
	if length == 0 {
		return 0
	}
	v := uint16(ptr[0])
	if ofs+length > 8 {
		v |= uint16(ptr[1]) << 8
	}
	return byte((v >> ofs) & ((1 << length) - 1))
}
