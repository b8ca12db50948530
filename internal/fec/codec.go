package fec

import (
	"errors"
	"fmt"
)

// MaxSymbolBits is the widest symbol the codec supports. Symbols are carried
// in bytes.
const MaxSymbolBits = 8

var (
	// ErrInvalidConfig is returned by New when the code parameters are
	// inconsistent.
	ErrInvalidConfig = errors.New("fec: invalid codec parameters")
	// ErrUncorrectable is returned by Decode when the block holds more errors
	// than the code can correct.
	ErrUncorrectable = errors.New("fec: uncorrectable block")
	// ErrBlockLength is returned when a data or codeword buffer has the
	// wrong number of symbols.
	ErrBlockLength = errors.New("fec: wrong block length")
	// ErrSymbolRange is returned when a symbol does not fit in the field.
	ErrSymbolRange = errors.New("fec: symbol out of range")
	// ErrErasureRange is returned when an erasure position lies outside the
	// codeword.
	ErrErasureRange = errors.New("fec: erasure position out of range")
)

// Config describes a Reed-Solomon code over GF(2^SymbolBits).
type Config struct {
	SymbolBits int // bits per symbol (m)
	FieldPoly  int // field generator polynomial coefficients
	FirstRoot  int // first consecutive root of the generator polynomial, index form
	PrimStep   int // primitive element used to step between roots, index form
	Roots      int // generator polynomial degree, equal to the parity symbol count
	Pad        int // leading zero symbols dropped from a shortened block
}

// Codec is a Reed-Solomon encoder/decoder for one fixed Config.
//
// A Codec is immutable after New returns and may be shared between
// goroutines.
type Codec struct {
	cfg     Config
	field   *fieldTables
	genpoly []int // index form
	iprim   int   // prim-th root of 1, index form
}

// New validates cfg and builds the field tables and generator polynomial.
func New(cfg Config) (*Codec, error) {
	if cfg.SymbolBits < 1 || cfg.SymbolBits > MaxSymbolBits {
		return nil, fmt.Errorf("%w: symbol size %d not in 1..%d", ErrInvalidConfig, cfg.SymbolBits, MaxSymbolBits)
	}

	size := 1 << cfg.SymbolBits
	nn := size - 1

	if cfg.FirstRoot < 0 || cfg.FirstRoot >= size {
		return nil, fmt.Errorf("%w: first root %d not in 0..%d", ErrInvalidConfig, cfg.FirstRoot, nn)
	}
	if cfg.PrimStep <= 0 || cfg.PrimStep >= size {
		return nil, fmt.Errorf("%w: primitive step %d not in 1..%d", ErrInvalidConfig, cfg.PrimStep, nn)
	}
	if cfg.Roots <= 0 || cfg.Roots >= size {
		return nil, fmt.Errorf("%w: %d roots, can't have more roots than symbol values", ErrInvalidConfig, cfg.Roots)
	}
	if cfg.Pad < 0 || cfg.Pad >= nn-cfg.Roots {
		return nil, fmt.Errorf("%w: pad %d leaves no data symbols", ErrInvalidConfig, cfg.Pad)
	}

	field, err := newFieldTables(cfg.SymbolBits, cfg.FieldPoly)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		cfg:   cfg,
		field: field,
	}

	// Find prim-th root of 1, used in decoding
	iprim := 1
	for iprim%cfg.PrimStep != 0 {
		iprim += nn
	}
	c.iprim = iprim / cfg.PrimStep

	c.genpoly = c.buildGenerator()

	return c, nil
}

// buildGenerator forms the generator polynomial from its roots
// alpha**(root), root = fcr*prim, fcr*prim+prim, ... and returns it in index
// form for quicker encoding.
func (c *Codec) buildGenerator() []int {
	nroots := c.cfg.Roots
	alphaTo, indexOf := c.field.alphaTo, c.field.indexOf

	g := make([]int, nroots+1)
	g[0] = 1
	for i, root := 0, c.cfg.FirstRoot*c.cfg.PrimStep; i < nroots; i, root = i+1, root+c.cfg.PrimStep {
		g[i+1] = 1

		// Multiply g[] by (x + alpha**root)
		for j := i; j > 0; j-- {
			if g[j] != 0 {
				g[j] = g[j-1] ^ alphaTo[c.field.modnn(indexOf[g[j]]+root)]
			} else {
				g[j] = g[j-1]
			}
		}
		// g[0] can never be zero
		g[0] = alphaTo[c.field.modnn(indexOf[g[0]]+root)]
	}

	for i := range g {
		g[i] = indexOf[g[i]]
	}
	return g
}

// Config returns the parameters the codec was built from.
func (c *Codec) Config() Config { return c.cfg }

// N returns the full (unshortened) block size 2^m - 1.
func (c *Codec) N() int { return c.field.nn }

// Roots returns the number of parity symbols.
func (c *Codec) Roots() int { return c.cfg.Roots }

// Pad returns the number of padding symbols of the shortened block.
func (c *Codec) Pad() int { return c.cfg.Pad }

// BlockLen returns the length of a shortened codeword: data plus parity.
func (c *Codec) BlockLen() int { return c.field.nn - c.cfg.Pad }

// DataLen returns the number of data symbols per codeword.
func (c *Codec) DataLen() int { return c.field.nn - c.cfg.Roots - c.cfg.Pad }

// MaxCorrectable returns the number of symbol errors the code can always
// correct when no erasures are supplied.
func (c *Codec) MaxCorrectable() int { return c.cfg.Roots / 2 }

// Mod reduces x modulo 2^m - 1. x must be non-negative.
func (c *Codec) Mod(x int) int { return c.field.modnn(x) }

// Log returns the discrete logarithm of a nonzero field element.
func (c *Codec) Log(x int) int { return c.field.indexOf[x] }

// Exp returns alpha**i for 0 <= i < 2^m - 1.
func (c *Codec) Exp(i int) int { return c.field.alphaTo[i] }

func (c *Codec) checkSymbols(buf []byte) error {
	for i, v := range buf {
		if int(v) > c.field.nn {
			return fmt.Errorf("%w: symbol %d is %#x, field holds 0..%#x", ErrSymbolRange, i, v, c.field.nn)
		}
	}
	return nil
}
