// Package pairing encodes two entity ids into one correlation id.
package pairing

// Cantor returns the Cantor pairing of a and b: (a+b)(a+b+1)/2 + b.
//
// The encoding is order-sensitive. Callers that correlate two halves of one
// relation must agree on the argument order; the convention in this module
// is (self, other) for contact-like events, (supported, supporting) for
// supported-by and (performedBy, objectActedOn) for slicing.
//
// Overflow wraps silently; entity ids are small per-episode integers.
func Cantor(a, b uint64) uint64 {
	s := a + b
	if s%2 == 0 {
		return (s/2)*(s+1) + b
	}
	return s*((s+1)/2) + b
}

// Symmetric returns Cantor(min, max), which is the same for (a, b) and (b, a).
func Symmetric(a, b uint64) uint64 {
	if a > b {
		a, b = b, a
	}
	return Cantor(a, b)
}

// Decode inverts Cantor.
func Decode(z uint64) (a, b uint64) {
	// w = floor((sqrt(8z+1)-1)/2), found without floating point.
	lo, hi := uint64(0), uint64(1)
	for tri(hi) <= z {
		hi *= 2
	}
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if tri(mid) <= z {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	w := lo
	b = z - tri(w)
	a = w - b
	return a, b
}

func tri(w uint64) uint64 {
	if w%2 == 0 {
		return (w / 2) * (w + 1)
	}
	return w * ((w + 1) / 2)
}
