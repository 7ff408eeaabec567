package gldevice

import "unsafe"

func unsafeSlice(p *uint8, n int) []byte {
	return unsafe.Slice(p, n)
}
