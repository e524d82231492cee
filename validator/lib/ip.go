package librpki

import (
	"bytes"
	"encoding/asn1"
	"fmt"
	"net"
)

type IPResourceType uint8

const (
	IPInherit IPResourceType = iota
	IPAddr
	IPRange
)

// IPResource is one entry of an sbgp-ipAddrBlock extension: either an
// inheritance marker for an address family, a prefix, or an explicit
// min/max range. Prefixes are expanded into their min/max bounds at
// decode time so overlap checks are uniform.
type IPResource struct {
	AFI       uint8
	Type      IPResourceType
	PrefixLen uint8
	Min       net.IP
	Max       net.IP
}

func (r *IPResource) String() string {
	switch r.Type {
	case IPInherit:
		return fmt.Sprintf("inherit (AFI %d)", r.AFI)
	case IPAddr:
		return fmt.Sprintf("%s/%d", r.Min.String(), r.PrefixLen)
	default:
		return fmt.Sprintf("%s-%s", r.Min.String(), r.Max.String())
	}
}

func familySize(afi uint8) int {
	if afi == AFIIPv6 {
		return 16
	}
	return 4
}

// parseAFI decodes the addressFamily octet string of RFC 3779 2.2.3.3:
// a two byte AFI, optionally followed by a SAFI byte.
func parseAFI(fn string, data []byte) (uint8, error) {
	if len(data) != 2 && len(data) != 3 {
		return 0, newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.2: addressFamily: invalid length %d", len(data))
	}
	afi := uint16(data[0])<<8 | uint16(data[1])
	if afi != uint16(AFIIPv4) && afi != uint16(AFIIPv6) {
		return 0, newError(KindSemantic, fn,
			"RFC 3779 section 2.2.3.2: addressFamily: invalid AFI %d", afi)
	}
	return uint8(afi), nil
}

// decodeIPAddr converts an RFC 3779 bit string into a fixed-width
// address of the family. With fill set, bits beyond the declared length
// are set to one, producing the upper bound of the encoded value.
func decodeIPAddr(fn string, afi uint8, bs asn1.BitString, fill bool) (net.IP, error) {
	size := familySize(afi)
	if bs.BitLength < 0 || bs.BitLength > size*8 {
		return nil, newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.8: IPAddress: invalid bit length %d for AFI %d",
			bs.BitLength, afi)
	}
	if len(bs.Bytes) != (bs.BitLength+7)/8 {
		return nil, newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.8: IPAddress: bit string length mismatch")
	}
	rem := bs.BitLength % 8
	if rem != 0 && bs.Bytes[len(bs.Bytes)-1]&(0xFF>>uint(rem)) != 0 {
		return nil, newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.8: IPAddress: unused bits not zero")
	}

	ip := make(net.IP, size)
	copy(ip, bs.Bytes)
	if fill {
		if rem != 0 {
			ip[bs.BitLength/8] |= 0xFF >> uint(rem)
		}
		for i := (bs.BitLength + 7) / 8; i < size; i++ {
			ip[i] = 0xFF
		}
	}
	return ip, nil
}

// decodeIPPrefix expands a prefix bit string into an IPAddr resource
// covering [network address, broadcast address].
func decodeIPPrefix(fn string, afi uint8, bs asn1.BitString) (*IPResource, error) {
	min, err := decodeIPAddr(fn, afi, bs, false)
	if err != nil {
		return nil, err
	}
	max, err := decodeIPAddr(fn, afi, bs, true)
	if err != nil {
		return nil, err
	}
	return &IPResource{
		AFI:       afi,
		Type:      IPAddr,
		PrefixLen: uint8(bs.BitLength),
		Min:       min,
		Max:       max,
	}, nil
}

// decodeIPRange decodes an explicit IPAddressRange. A range whose
// minimum compares above its maximum is rejected before storage.
func decodeIPRange(fn string, afi uint8, minBS, maxBS asn1.BitString) (*IPResource, error) {
	min, err := decodeIPAddr(fn, afi, minBS, false)
	if err != nil {
		return nil, err
	}
	max, err := decodeIPAddr(fn, afi, maxBS, true)
	if err != nil {
		return nil, err
	}
	if bytes.Compare(min, max) > 0 {
		return nil, newError(KindSemantic, fn,
			"RFC 3779 section 2.2.3.9: IPAddressRange: IP address range reversed")
	}
	return &IPResource{
		AFI:  afi,
		Type: IPRange,
		Min:  min,
		Max:  max,
	}, nil
}

// ipOverlap reports whether two entries of the extension conflict under
// RFC 3779 2.2.3.6: entries of different families never conflict; an
// inheritance marker may not coexist with any other entry of its
// family; grants of the same family may not intersect numerically.
func ipOverlap(a, b *IPResource) bool {
	if a.AFI != b.AFI {
		return false
	}
	if a.Type == IPInherit || b.Type == IPInherit {
		return true
	}
	return bytes.Compare(a.Min, b.Max) <= 0 && bytes.Compare(b.Min, a.Max) <= 0
}
