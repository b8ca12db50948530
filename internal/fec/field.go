package fec

import "fmt"

// fieldTables holds the log/antilog lookup tables for GF(2^mm).
//
// alphaTo maps a log (index form) to its field value; indexOf maps a field
// value back to its log. Zero has no logarithm, so indexOf[0] holds nn,
// which doubles as the "A0" sentinel in index-form arithmetic.
type fieldTables struct {
	mm      int
	nn      int
	alphaTo []int
	indexOf []int
}

// newFieldTables walks the multiplicative group generated by poly using a
// shift register, assigning each nonzero element a unique log in 0..nn-1.
func newFieldTables(mm int, poly int) (*fieldTables, error) {
	nn := (1 << mm) - 1

	f := &fieldTables{
		mm:      mm,
		nn:      nn,
		alphaTo: make([]int, nn+1),
		indexOf: make([]int, nn+1),
	}

	f.indexOf[0] = nn // log(0) = -inf
	f.alphaTo[nn] = 0 // alpha**-inf = 0

	sr := 1
	for i := 0; i < nn; i++ {
		f.indexOf[sr] = i
		f.alphaTo[i] = sr
		sr <<= 1
		if sr&(1<<mm) != 0 {
			sr ^= poly
		}
		sr &= nn
		if sr == 0 || (sr == 1 && i < nn-1) {
			break
		}
	}
	if sr != 1 || f.alphaTo[nn-1] == 0 {
		return nil, fmt.Errorf("%w: field polynomial %#x is not primitive for m=%d", ErrInvalidConfig, poly, mm)
	}

	return f, nil
}

// modnn reduces x modulo nn without a division. The result is in [0, nn).
func (f *fieldTables) modnn(x int) int {
	for x >= f.nn {
		x -= f.nn
		x = (x >> f.mm) + (x & f.nn)
	}
	return x
}
