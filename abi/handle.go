package abi

import "strconv"

// Handle is an opaque, stable token identifying one live native object.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Valid reports whether h can refer to an object.
func (h Handle) Valid() bool {
	return h != 0
}

func (h Handle) String() string {
	return "#" + strconv.FormatUint(uint64(h), 10)
}
