package librpki

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"math/big"
	"net"
)

// Extension encoders, used to build synthetic certificates in tests and
// test fixtures. They produce the same DER the decoders accept.

func fullBitString(ip net.IP) asn1.BitString {
	b := append([]byte(nil), ip...)
	return asn1.BitString{Bytes: b, BitLength: len(b) * 8}
}

type ipAddressFamilyEnc struct {
	AddressFamily []byte
	Choice        asn1.RawValue
}

type ipRangeEnc struct {
	Min asn1.BitString
	Max asn1.BitString
}

// EncodeIPAddressBlock builds an sbgp-ipAddrBlock extension, grouping
// the entries into one IPAddressFamily per AFI in first-seen order.
func EncodeIPAddressBlock(ips []IPResource) (*pkix.Extension, error) {
	type family struct {
		entries []asn1.RawValue
		inherit bool
	}
	var order []uint8
	fams := make(map[uint8]*family)

	for i := range ips {
		ip := &ips[i]
		f, ok := fams[ip.AFI]
		if !ok {
			f = &family{}
			fams[ip.AFI] = f
			order = append(order, ip.AFI)
		}
		switch ip.Type {
		case IPInherit:
			f.inherit = true
		case IPAddr:
			bs := asn1.BitString{
				Bytes:     append([]byte(nil), ip.Min[:(int(ip.PrefixLen)+7)/8]...),
				BitLength: int(ip.PrefixLen),
			}
			b, err := asn1.Marshal(bs)
			if err != nil {
				return nil, err
			}
			f.entries = append(f.entries, asn1.RawValue{FullBytes: b})
		case IPRange:
			b, err := asn1.Marshal(ipRangeEnc{fullBitString(ip.Min), fullBitString(ip.Max)})
			if err != nil {
				return nil, err
			}
			f.entries = append(f.entries, asn1.RawValue{FullBytes: b})
		}
	}

	var famRVs []asn1.RawValue
	for _, afi := range order {
		f := fams[afi]
		var choice asn1.RawValue
		if f.inherit {
			if len(f.entries) > 0 {
				return nil, errors.New("inherit must be the only entry of its family")
			}
			choice = asn1.NullRawValue
		} else {
			b, err := asn1.Marshal(f.entries)
			if err != nil {
				return nil, err
			}
			choice = asn1.RawValue{FullBytes: b}
		}
		b, err := asn1.Marshal(ipAddressFamilyEnc{
			AddressFamily: []byte{0, afi},
			Choice:        choice,
		})
		if err != nil {
			return nil, err
		}
		famRVs = append(famRVs, asn1.RawValue{FullBytes: b})
	}

	v, err := asn1.Marshal(famRVs)
	if err != nil {
		return nil, err
	}
	return &pkix.Extension{Id: IPAddrBlock, Critical: true, Value: v}, nil
}

type asRangeEnc struct {
	Min *big.Int
	Max *big.Int
}

// EncodeASIdentifiers builds an sbgp-autonomousSysNum extension with a
// single asnum choice.
func EncodeASIdentifiers(asns []ASResource) (*pkix.Extension, error) {
	var choiceFull []byte
	var err error

	if len(asns) == 1 && asns[0].Type == ASInherit {
		choiceFull, err = asn1.Marshal(asn1.NullRawValue)
		if err != nil {
			return nil, err
		}
	} else {
		var entries []asn1.RawValue
		for i := range asns {
			as := &asns[i]
			var b []byte
			switch as.Type {
			case ASInherit:
				return nil, errors.New("inherit must be the only AS entry")
			case ASId:
				b, err = asn1.Marshal(new(big.Int).SetUint64(uint64(as.ID)))
			case ASRange:
				b, err = asn1.Marshal(asRangeEnc{
					Min: new(big.Int).SetUint64(uint64(as.Min)),
					Max: new(big.Int).SetUint64(uint64(as.Max)),
				})
			}
			if err != nil {
				return nil, err
			}
			entries = append(entries, asn1.RawValue{FullBytes: b})
		}
		choiceFull, err = asn1.Marshal(entries)
		if err != nil {
			return nil, err
		}
	}

	wrapped, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      choiceFull,
	})
	if err != nil {
		return nil, err
	}
	v, err := asn1.Marshal([]asn1.RawValue{{FullBytes: wrapped}})
	if err != nil {
		return nil, err
	}
	return &pkix.Extension{Id: AutonomousSysIds, Critical: true, Value: v}, nil
}

// EncodeSIA builds a Subject Information Access extension.
func EncodeSIA(sias []*SIA) (*pkix.Extension, error) {
	vals := make([]SIA, len(sias))
	for i, s := range sias {
		vals[i] = *s
	}
	v, err := asn1.Marshal(vals)
	if err != nil {
		return nil, err
	}
	return &pkix.Extension{Id: SubjectInfoAccess, Critical: false, Value: v}, nil
}

// EncodePolicies builds a certificatePolicies extension carrying the
// RPKI policy, with an optional CPS qualifier.
func EncodePolicies(cpsURI string) (*pkix.Extension, error) {
	pol := policyInformation{Policy: CertPolicyRPKI}
	if cpsURI != "" {
		pol.Qualifiers = []policyQualifier{{
			OID:   PolicyQualifierCPS,
			Value: asn1.RawValue{Tag: asn1.TagIA5String, Bytes: []byte(cpsURI)},
		}}
	}
	v, err := asn1.Marshal([]policyInformation{pol})
	if err != nil {
		return nil, err
	}
	return &pkix.Extension{Id: CertificatePolicies, Critical: true, Value: v}, nil
}
