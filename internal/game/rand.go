package game

import "github.com/valyala/fastrand"

// Rand is the injectable random source for word sampling and hint reveals.
type Rand interface {
	IntN(n int) int
}

// FastRand is the production source. Safe for concurrent use.
type FastRand struct{}

func (FastRand) IntN(n int) int {
	return int(fastrand.Uint32n(uint32(n)))
}
