package librpki

import (
	"fmt"
	"math/big"
)

type ASResourceType uint8

const (
	ASInherit ASResourceType = iota
	ASId
	ASRange
)

// ASResource is one entry of an sbgp-autonomousSysNum extension: an
// inheritance marker, a single AS identifier, or an inclusive range.
type ASResource struct {
	Type ASResourceType
	ID   uint32
	Min  uint32
	Max  uint32
}

func (a *ASResource) String() string {
	switch a.Type {
	case ASInherit:
		return "inherit"
	case ASId:
		return fmt.Sprintf("AS%d", a.ID)
	default:
		return fmt.Sprintf("AS%d-AS%d", a.Min, a.Max)
	}
}

// parseASId range-checks an AS identifier decoded as an
// arbitrary-precision integer. RFC 1930 limits identifiers to 32 bits.
func parseASId(fn string, id *big.Int) (uint32, error) {
	if id.Sign() < 0 || id.BitLen() > 32 {
		return 0, newError(KindSemantic, fn,
			"RFC 3779 section 3.2.3.8 (via RFC 1930): malformed AS identifier %s", id.String())
	}
	return uint32(id.Uint64()), nil
}

// asOverlap reports whether two entries of the extension conflict under
// RFC 3779 3.3: an inheritance marker must be the sole entry, and
// identifier ranges may not intersect.
func asOverlap(a, b *ASResource) bool {
	if a.Type == ASInherit || b.Type == ASInherit {
		return true
	}
	amin, amax := a.bounds()
	bmin, bmax := b.bounds()
	return amin <= bmax && bmin <= amax
}

func (a *ASResource) bounds() (uint32, uint32) {
	if a.Type == ASId {
		return a.ID, a.ID
	}
	return a.Min, a.Max
}
