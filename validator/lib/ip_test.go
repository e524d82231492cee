package librpki

import (
	"encoding/asn1"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAFI(t *testing.T) {
	afi, err := parseAFI("test.cer", []byte{0, 1})
	assert.Nil(t, err)
	assert.Equal(t, AFIIPv4, afi)

	afi, err = parseAFI("test.cer", []byte{0, 2})
	assert.Nil(t, err)
	assert.Equal(t, AFIIPv6, afi)

	// trailing SAFI byte is tolerated
	afi, err = parseAFI("test.cer", []byte{0, 1, 0})
	assert.Nil(t, err)
	assert.Equal(t, AFIIPv4, afi)

	_, err = parseAFI("test.cer", []byte{0, 3})
	assert.NotNil(t, err)
	_, err = parseAFI("test.cer", []byte{1})
	assert.NotNil(t, err)
}

func TestDecodePrefixZeroLength(t *testing.T) {
	res, err := decodeIPPrefix("test.cer", AFIIPv4, asn1.BitString{})
	assert.Nil(t, err)
	assert.Equal(t, IPAddr, res.Type)
	assert.Equal(t, uint8(0), res.PrefixLen)
	assert.Equal(t, net.IP{0, 0, 0, 0}, res.Min)
	assert.Equal(t, net.IP{255, 255, 255, 255}, res.Max)
}

func TestDecodePrefix(t *testing.T) {
	res, err := decodeIPPrefix("test.cer", AFIIPv4,
		asn1.BitString{Bytes: []byte{192, 0, 2}, BitLength: 24})
	assert.Nil(t, err)
	assert.Equal(t, net.IP{192, 0, 2, 0}, res.Min)
	assert.Equal(t, net.IP{192, 0, 2, 255}, res.Max)

	res, err = decodeIPPrefix("test.cer", AFIIPv4,
		asn1.BitString{Bytes: []byte{10, 128}, BitLength: 9})
	assert.Nil(t, err)
	assert.Equal(t, net.IP{10, 128, 0, 0}, res.Min)
	assert.Equal(t, net.IP{10, 255, 255, 255}, res.Max)
}

func TestDecodePrefixUnusedBits(t *testing.T) {
	// host bits beyond the declared length must be zero on the wire
	_, err := decodeIPPrefix("test.cer", AFIIPv4,
		asn1.BitString{Bytes: []byte{192, 0, 2, 1}, BitLength: 30})
	assert.NotNil(t, err)
}

func TestDecodePrefixTooLong(t *testing.T) {
	_, err := decodeIPPrefix("test.cer", AFIIPv4,
		asn1.BitString{Bytes: []byte{1, 2, 3, 4, 5}, BitLength: 40})
	assert.NotNil(t, err)
}

func TestDecodeRangeReversed(t *testing.T) {
	min := asn1.BitString{Bytes: []byte{10, 0, 0, 0}, BitLength: 32}
	max := asn1.BitString{Bytes: []byte{9, 0, 0, 0}, BitLength: 32}
	_, err := decodeIPRange("test.cer", AFIIPv4, min, max)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "reversed")

	res, err := decodeIPRange("test.cer", AFIIPv4, max, min)
	assert.Nil(t, err)
	assert.Equal(t, net.IP{9, 0, 0, 0}, res.Min)
	assert.Equal(t, net.IP{10, 0, 0, 0}, res.Max)
}

func TestIPOverlap(t *testing.T) {
	prefix := IPResource{AFI: AFIIPv4, Type: IPAddr, PrefixLen: 8,
		Min: net.IP{10, 0, 0, 0}, Max: net.IP{10, 255, 255, 255}}
	inside := IPResource{AFI: AFIIPv4, Type: IPRange,
		Min: net.IP{10, 0, 0, 0}, Max: net.IP{10, 0, 0, 255}}
	other := IPResource{AFI: AFIIPv4, Type: IPRange,
		Min: net.IP{11, 0, 0, 0}, Max: net.IP{11, 0, 0, 255}}
	inherit4 := IPResource{AFI: AFIIPv4, Type: IPInherit}
	inherit6 := IPResource{AFI: AFIIPv6, Type: IPInherit}

	assert.True(t, ipOverlap(&prefix, &inside))
	assert.False(t, ipOverlap(&prefix, &other))
	assert.True(t, ipOverlap(&prefix, &inherit4))
	assert.False(t, ipOverlap(&prefix, &inherit6))
	assert.True(t, ipOverlap(&inherit4, &inherit4))
	assert.False(t, ipOverlap(&inherit4, &inherit6))
}

func TestAppendIP(t *testing.T) {
	cert := &ResourceCert{}

	err := cert.AppendIP("test.cer", IPResource{AFI: AFIIPv4, Type: IPAddr, PrefixLen: 8,
		Min: net.IP{10, 0, 0, 0}, Max: net.IP{10, 255, 255, 255}})
	assert.Nil(t, err)

	// overlapping range of the same family is refused without side effects
	err = cert.AppendIP("test.cer", IPResource{AFI: AFIIPv4, Type: IPRange,
		Min: net.IP{10, 1, 0, 0}, Max: net.IP{10, 1, 0, 255}})
	assert.NotNil(t, err)
	assert.Len(t, cert.IPs, 1)

	// a single inherit per family, alongside nothing else of that family
	err = cert.AppendIP("test.cer", IPResource{AFI: AFIIPv4, Type: IPInherit})
	assert.NotNil(t, err)

	err = cert.AppendIP("test.cer", IPResource{AFI: AFIIPv6, Type: IPInherit})
	assert.Nil(t, err)
	err = cert.AppendIP("test.cer", IPResource{AFI: AFIIPv6, Type: IPInherit})
	assert.NotNil(t, err)
	assert.Len(t, cert.IPs, 2)
}
