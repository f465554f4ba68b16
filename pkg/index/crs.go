package index

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an address falls outside its grid.
var ErrOutOfRange = errors.New("index: address out of range")

// CRS2Ind returns the linear index of (c, r, s) in a column-fastest grid.
func CRS2Ind(c, r, s, ncols, nrows, nslcs int) (int, error) {
	if c < 0 || c >= ncols || r < 0 || r >= nrows || s < 0 || s >= nslcs {
		return -1, fmt.Errorf("%w: (%d,%d,%d) in %dx%dx%d", ErrOutOfRange, c, r, s, ncols, nrows, nslcs)
	}
	return c + r*ncols + s*ncols*nrows, nil
}

// Ind2CRS is the inverse of CRS2Ind.
func Ind2CRS(ind, ncols, nrows, nslcs int) (c, r, s int, err error) {
	if ncols <= 0 || nrows <= 0 || nslcs <= 0 || ind < 0 || ind >= ncols*nrows*nslcs {
		return -1, -1, -1, fmt.Errorf("%w: index %d in %dx%dx%d", ErrOutOfRange, ind, ncols, nrows, nslcs)
	}
	s = ind / (ncols * nrows)
	rem := ind - s*ncols*nrows
	r = rem / ncols
	c = rem - r*ncols
	return c, r, s, nil
}
