package fec

import "fmt"

// Encode computes the parity symbols for data, which must hold exactly
// DataLen symbols. The returned slice has Roots symbols; data followed by
// parity is a codeword.
func (c *Codec) Encode(data []byte) ([]byte, error) {
	if len(data) != c.DataLen() {
		return nil, fmt.Errorf("%w: got %d data symbols, want %d", ErrBlockLength, len(data), c.DataLen())
	}
	if err := c.checkSymbols(data); err != nil {
		return nil, err
	}

	nroots := c.cfg.Roots
	nn := c.field.nn
	alphaTo, indexOf := c.field.alphaTo, c.field.indexOf

	bb := make([]int, nroots)
	for i := range data {
		feedback := indexOf[int(data[i])^bb[0]]

		if feedback != nn { // feedback term is non-zero
			for j := 1; j < nroots; j++ {
				bb[j] ^= alphaTo[c.field.modnn(feedback+c.genpoly[nroots-j])]
			}
		}

		// Shift
		copy(bb, bb[1:])

		if feedback != nn {
			bb[nroots-1] = alphaTo[c.field.modnn(feedback+c.genpoly[0])]
		} else {
			bb[nroots-1] = 0
		}
	}

	parity := make([]byte, nroots)
	for i, v := range bb {
		parity[i] = byte(v)
	}
	return parity, nil
}

// EncodeBlock returns a new codeword: data followed by its parity.
func (c *Codec) EncodeBlock(data []byte) ([]byte, error) {
	parity, err := c.Encode(data)
	if err != nil {
		return nil, err
	}
	block := make([]byte, 0, len(data)+len(parity))
	block = append(block, data...)
	return append(block, parity...), nil
}
