package main

import (
	"math"
	"strconv"

	"github.com/wippyai/c2pa-bridge/errors"
)

// maxBuffer caps a caller buffer at what a Go slice can index on every
// platform the library builds for.
const maxBuffer = math.MaxInt32

// bufferLen converts a C length to a slice length.
func bufferLen(op string, n uint64) (int, error) {
	if n > maxBuffer {
		return 0, errors.FFI(errors.PhaseBoundary, op,
			"buffer length "+strconv.FormatUint(n, 10)+" exceeds "+strconv.Itoa(maxBuffer))
	}
	return int(n), nil
}
