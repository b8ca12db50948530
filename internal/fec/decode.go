package fec

import "fmt"

// Decode checks block and corrects it in place.
//
// block must hold BlockLen symbols (data followed by parity). erasures, if
// any, are indices into block of symbols known to be unreliable; each one
// costs one parity symbol, half the cost of an unknown error.
//
// Decode returns the number of symbol positions located by the error
// locator (errors plus erasures). A block that is already a codeword
// returns 0. When the block cannot be corrected Decode returns
// ErrUncorrectable and leaves block untouched.
func (c *Codec) Decode(block []byte, erasures []int) (int, error) {
	nn := c.field.nn
	nroots := c.cfg.Roots
	pad := c.cfg.Pad
	fcr := c.cfg.FirstRoot
	prim := c.cfg.PrimStep
	alphaTo, indexOf := c.field.alphaTo, c.field.indexOf
	modnn := c.field.modnn
	a0 := nn

	if len(block) != nn-pad {
		return 0, fmt.Errorf("%w: got %d symbols, want %d", ErrBlockLength, len(block), nn-pad)
	}
	if err := c.checkSymbols(block); err != nil {
		return 0, err
	}
	noEras := len(erasures)
	if noEras > nroots {
		return 0, fmt.Errorf("%w: %d erasures exceed %d parity symbols", ErrUncorrectable, noEras, nroots)
	}
	for _, pos := range erasures {
		if pos < 0 || pos >= len(block) {
			return 0, fmt.Errorf("%w: %d not in 0..%d", ErrErasureRange, pos, len(block)-1)
		}
	}

	// Form the syndromes; i.e., evaluate block(x) at the roots of g(x).
	s := make([]int, nroots)
	for i := range s {
		s[i] = int(block[0])
	}
	for j := 1; j < nn-pad; j++ {
		for i := 0; i < nroots; i++ {
			if s[i] == 0 {
				s[i] = int(block[j])
			} else {
				s[i] = int(block[j]) ^ alphaTo[modnn(indexOf[s[i]]+(fcr+i)*prim)]
			}
		}
	}

	// Convert syndromes to index form, checking for nonzero condition.
	synError := 0
	for i := range s {
		synError |= s[i]
		s[i] = indexOf[s[i]]
	}
	if synError == 0 {
		return 0, nil
	}

	lambda := make([]int, nroots+1)
	lambda[0] = 1

	if noEras > 0 {
		// Init lambda to be the erasure locator polynomial. Positions are
		// shifted past the pad to full-block coordinates.
		lambda[1] = alphaTo[modnn(prim*(nn-1-(erasures[0]+pad)))]
		for i := 1; i < noEras; i++ {
			u := modnn(prim * (nn - 1 - (erasures[i] + pad)))
			for j := i + 1; j > 0; j-- {
				tmp := indexOf[lambda[j-1]]
				if tmp != a0 {
					lambda[j] ^= alphaTo[modnn(u+tmp)]
				}
			}
		}
	}

	b := make([]int, nroots+1)
	t := make([]int, nroots+1)
	for i := range b {
		b[i] = indexOf[lambda[i]]
	}

	// Berlekamp-Massey: determine the error+erasure locator polynomial.
	el := noEras
	for r := noEras + 1; r <= nroots; r++ {
		// Discrepancy at the r-th step in poly form.
		discr := 0
		for i := 0; i < r; i++ {
			if lambda[i] != 0 && s[r-i-1] != a0 {
				discr ^= alphaTo[modnn(indexOf[lambda[i]]+s[r-i-1])]
			}
		}
		discr = indexOf[discr]

		if discr == a0 {
			// B(x) <-- x*B(x)
			copy(b[1:], b[:nroots])
			b[0] = a0
			continue
		}

		// T(x) <-- lambda(x) - discr*x*b(x)
		t[0] = lambda[0]
		for i := 0; i < nroots; i++ {
			if b[i] != a0 {
				t[i+1] = lambda[i+1] ^ alphaTo[modnn(discr+b[i])]
			} else {
				t[i+1] = lambda[i+1]
			}
		}
		if 2*el <= r+noEras-1 {
			el = r + noEras - el
			// B(x) <-- inv(discr) * lambda(x)
			for i := 0; i <= nroots; i++ {
				if lambda[i] == 0 {
					b[i] = a0
				} else {
					b[i] = modnn(indexOf[lambda[i]] - discr + nn)
				}
			}
		} else {
			// B(x) <-- x*B(x)
			copy(b[1:], b[:nroots])
			b[0] = a0
		}
		copy(lambda, t)
	}

	// Convert lambda to index form and compute deg(lambda(x)).
	degLambda := 0
	for i := range lambda {
		lambda[i] = indexOf[lambda[i]]
		if lambda[i] != a0 {
			degLambda = i
		}
	}
	// A locator shorter than the register length does not describe the
	// error pattern, even if its roots happen to be found.
	if degLambda != el {
		return 0, fmt.Errorf("%w: locator degree %d, register length %d", ErrUncorrectable, degLambda, el)
	}
	if degLambda == 0 {
		return 0, fmt.Errorf("%w: nonzero syndromes but empty locator", ErrUncorrectable)
	}

	// Chien search for the roots of the error+erasure locator polynomial.
	reg := make([]int, nroots+1)
	copy(reg[1:], lambda[1:])
	root := make([]int, nroots)
	loc := make([]int, nroots)
	count := 0
	for i, k := 1, c.iprim-1; i <= nn; i, k = i+1, modnn(k+c.iprim) {
		q := 1 // lambda[0] is always 0
		for j := degLambda; j > 0; j-- {
			if reg[j] != a0 {
				reg[j] = modnn(reg[j] + j)
				q ^= alphaTo[reg[j]]
			}
		}
		if q != 0 {
			continue // not a root
		}
		root[count] = i
		loc[count] = k
		count++
		if count == degLambda {
			break
		}
	}
	if count != degLambda {
		return 0, fmt.Errorf("%w: locator degree %d but %d roots found", ErrUncorrectable, degLambda, count)
	}
	if errs := count - noEras; 2*errs+noEras > nroots {
		return 0, fmt.Errorf("%w: %d errors and %d erasures exceed %d parity symbols", ErrUncorrectable, errs, noEras, nroots)
	}
	for j := 0; j < count; j++ {
		// A correction in the pad would turn a known zero into something
		// else, so the block was not really recovered.
		if loc[j] < pad {
			return 0, fmt.Errorf("%w: error located in padding position %d", ErrUncorrectable, loc[j])
		}
	}

	// Error+erasure evaluator omega(x) = s(x)*lambda(x) mod x**nroots, in
	// index form.
	omega := make([]int, nroots+1)
	degOmega := 0
	for i := 0; i < nroots; i++ {
		tmp := 0
		j := i
		if degLambda < i {
			j = degLambda
		}
		for ; j >= 0; j-- {
			if s[i-j] != a0 && lambda[j] != a0 {
				tmp ^= alphaTo[modnn(s[i-j]+lambda[j])]
			}
		}
		if tmp != 0 {
			degOmega = i
		}
		omega[i] = indexOf[tmp]
	}
	omega[nroots] = a0

	// Forney: error values in poly form. num1 = omega(inv(X(l))),
	// num2 = inv(X(l))**(fcr-1) and den = lambda_pr(inv(X(l))).
	magnitude := make([]int, count)
	for j := count - 1; j >= 0; j-- {
		num1 := 0
		for i := degOmega; i >= 0; i-- {
			if omega[i] != a0 {
				num1 ^= alphaTo[modnn(omega[i]+i*root[j])]
			}
		}
		num2 := alphaTo[modnn(root[j]*(fcr-1)+nn)]

		// lambda[i+1] for i even is the formal derivative lambda_pr of lambda[i]
		den := 0
		for i := min(degLambda, nroots-1) &^ 1; i >= 0; i -= 2 {
			if lambda[i+1] != a0 {
				den ^= alphaTo[modnn(lambda[i+1]+i*root[j])]
			}
		}
		if den == 0 {
			return 0, fmt.Errorf("%w: zero denominator in error evaluation", ErrUncorrectable)
		}
		if num1 != 0 {
			magnitude[j] = alphaTo[modnn(indexOf[num1]+indexOf[num2]+nn-indexOf[den])]
		}
	}

	for j := 0; j < count; j++ {
		block[loc[j]-pad] ^= byte(magnitude[j])
	}

	return count, nil
}
