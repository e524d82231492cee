package librpki

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
)

// unmarshalValue decodes a single ASN.1 value and rejects trailing data.
func unmarshalValue(fn string, data []byte, out interface{}) error {
	rest, err := asn1.Unmarshal(data, out)
	if err != nil {
		return wrapError(KindDecode, fn, err, "failed ASN.1 parse")
	}
	if len(rest) != 0 {
		return newError(KindDecode, fn, "trailing data after ASN.1 value")
	}
	return nil
}

// sequenceElements splits the contents of a constructed value into its
// raw elements, one RawValue per TLV.
func sequenceElements(fn string, data []byte) ([]asn1.RawValue, error) {
	var elems []asn1.RawValue
	for len(data) > 0 {
		var rv asn1.RawValue
		rest, err := asn1.Unmarshal(data, &rv)
		if err != nil {
			return nil, wrapError(KindDecode, fn, err, "failed ASN.1 sequence parse")
		}
		elems = append(elems, rv)
		data = rest
	}
	return elems, nil
}

// decodeIPAddrBlockExt parses the sbgp-ipAddrBlock extension
// (RFC 6487 4.8.10, syntax from RFC 3779 section 2.2) and appends every
// decoded entry to the certificate's IP resource list.
func decodeIPAddrBlockExt(fn string, cert *ResourceCert, ext pkix.Extension) error {
	if !ext.Critical {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.10: sbgp-ipAddrBlock: extension not critical")
	}

	var outer asn1.RawValue
	if err := unmarshalValue(fn, ext.Value, &outer); err != nil {
		return err
	}
	if outer.Class != asn1.ClassUniversal || outer.Tag != asn1.TagSequence || !outer.IsCompound {
		return newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.1: IPAddrBlocks: want ASN.1 sequence, have tag %d", outer.Tag)
	}

	fams, err := sequenceElements(fn, outer.Bytes)
	if err != nil {
		return err
	}
	for _, fam := range fams {
		if fam.Class != asn1.ClassUniversal || fam.Tag != asn1.TagSequence {
			return newError(KindDecode, fn,
				"RFC 3779 section 2.2.3.2: IPAddressFamily: want ASN.1 sequence, have tag %d", fam.Tag)
		}
		if err := decodeIPAddressFamily(fn, cert, fam.Bytes); err != nil {
			return err
		}
	}
	return nil
}

// decodeIPAddressFamily parses one IPAddressFamily: an addressFamily
// octet string followed by either NULL (inherit) or a sequence of
// addresses and ranges.
func decodeIPAddressFamily(fn string, cert *ResourceCert, data []byte) error {
	elems, err := sequenceElements(fn, data)
	if err != nil {
		return err
	}
	if len(elems) != 2 {
		return newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.2: IPAddressFamily: want 2 elements, have %d", len(elems))
	}

	if elems[0].Class != asn1.ClassUniversal || elems[0].Tag != asn1.TagOctetString {
		return newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.2: addressFamily: want ASN.1 octet string, have tag %d", elems[0].Tag)
	}
	afi, err := parseAFI(fn, elems[0].Bytes)
	if err != nil {
		return err
	}

	choice := elems[1]
	switch {
	case choice.Class == asn1.ClassUniversal && choice.Tag == asn1.TagNull:
		return cert.AppendIP(fn, IPResource{AFI: afi, Type: IPInherit})
	case choice.Class == asn1.ClassUniversal && choice.Tag == asn1.TagSequence:
		return decodeIPAddressOrRanges(fn, cert, afi, choice.Bytes)
	default:
		return newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.2: IPAddressChoice: want ASN.1 sequence or null, have tag %d", choice.Tag)
	}
}

func decodeIPAddressOrRanges(fn string, cert *ResourceCert, afi uint8, data []byte) error {
	entries, err := sequenceElements(fn, data)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Class != asn1.ClassUniversal {
			return newError(KindDecode, fn,
				"RFC 3779 section 2.2.3.7: IPAddressOrRange: want ASN.1 sequence or bit string, have class %d tag %d",
				entry.Class, entry.Tag)
		}
		switch entry.Tag {
		case asn1.TagBitString:
			var bs asn1.BitString
			if err := unmarshalValue(fn, entry.FullBytes, &bs); err != nil {
				return err
			}
			res, err := decodeIPPrefix(fn, afi, bs)
			if err != nil {
				return err
			}
			if err := cert.AppendIP(fn, *res); err != nil {
				return err
			}
		case asn1.TagSequence:
			if err := decodeIPRangeEntry(fn, cert, afi, entry.Bytes); err != nil {
				return err
			}
		default:
			return newError(KindDecode, fn,
				"RFC 3779 section 2.2.3.7: IPAddressOrRange: want ASN.1 sequence or bit string, have tag %d",
				entry.Tag)
		}
	}
	return nil
}

func decodeIPRangeEntry(fn string, cert *ResourceCert, afi uint8, data []byte) error {
	elems, err := sequenceElements(fn, data)
	if err != nil {
		return err
	}
	if len(elems) != 2 {
		return newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.9: IPAddressRange: want 2 elements, have %d", len(elems))
	}
	var minBS, maxBS asn1.BitString
	if elems[0].Tag != asn1.TagBitString || elems[1].Tag != asn1.TagBitString {
		return newError(KindDecode, fn,
			"RFC 3779 section 2.2.3.9: IPAddressRange: want ASN.1 bit strings")
	}
	if err := unmarshalValue(fn, elems[0].FullBytes, &minBS); err != nil {
		return err
	}
	if err := unmarshalValue(fn, elems[1].FullBytes, &maxBS); err != nil {
		return err
	}
	res, err := decodeIPRange(fn, afi, minBS, maxBS)
	if err != nil {
		return err
	}
	return cert.AppendIP(fn, *res)
}

// decodeASIdentifiersExt parses the sbgp-autonomousSysNum extension
// (RFC 6487 4.8.11, syntax from RFC 3779 section 3.2). The private RDI
// tag is recognized and skipped; any other explicit tag fails.
func decodeASIdentifiersExt(fn string, cert *ResourceCert, ext pkix.Extension) error {
	if !ext.Critical {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.11: autonomousSysNum: extension not critical")
	}

	var outer asn1.RawValue
	if err := unmarshalValue(fn, ext.Value, &outer); err != nil {
		return err
	}
	if outer.Class != asn1.ClassUniversal || outer.Tag != asn1.TagSequence || !outer.IsCompound {
		return newError(KindDecode, fn,
			"RFC 3779 section 3.2.3.1: ASIdentifiers: want ASN.1 sequence, have tag %d", outer.Tag)
	}

	elems, err := sequenceElements(fn, outer.Bytes)
	if err != nil {
		return err
	}
	for _, e := range elems {
		if e.Class != asn1.ClassContextSpecific || !e.IsCompound {
			return newError(KindDecode, fn,
				"RFC 3779 section 3.2.3.1: ASIdentifiers: want ASN.1 explicit tag, have class %d tag %d",
				e.Class, e.Tag)
		}
		switch e.Tag {
		case 0:
			if err := decodeASIdentifierChoice(fn, cert, e.Bytes); err != nil {
				return err
			}
		case 1:
			// routing domain identifiers, deprecated and unused in the RPKI
			continue
		default:
			return newError(KindDecode, fn,
				"RFC 3779 section 3.2.3.1: ASIdentifiers: unknown explicit tag 0x%02x", e.Tag)
		}
	}
	return nil
}

// decodeASIdentifierChoice parses ASIdentifierChoice: NULL to inherit
// or a sequence of single identifiers and ranges.
func decodeASIdentifierChoice(fn string, cert *ResourceCert, data []byte) error {
	var rv asn1.RawValue
	if err := unmarshalValue(fn, data, &rv); err != nil {
		return err
	}
	switch {
	case rv.Class == asn1.ClassUniversal && rv.Tag == asn1.TagNull:
		return cert.AppendAS(fn, ASResource{Type: ASInherit})
	case rv.Class == asn1.ClassUniversal && rv.Tag == asn1.TagSequence:
		entries, err := sequenceElements(fn, rv.Bytes)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Class != asn1.ClassUniversal {
				return newError(KindDecode, fn,
					"RFC 3779 section 3.2.3.5: ASIdOrRange: want ASN.1 sequence or integer, have class %d tag %d",
					entry.Class, entry.Tag)
			}
			switch entry.Tag {
			case asn1.TagInteger:
				if err := decodeASId(fn, cert, entry.FullBytes); err != nil {
					return err
				}
			case asn1.TagSequence:
				if err := decodeASRangeEntry(fn, cert, entry.Bytes); err != nil {
					return err
				}
			default:
				return newError(KindDecode, fn,
					"RFC 3779 section 3.2.3.5: ASIdOrRange: want ASN.1 sequence or integer, have tag %d",
					entry.Tag)
			}
		}
		return nil
	default:
		return newError(KindDecode, fn,
			"RFC 3779 section 3.2.3.2: ASIdentifierChoice: want ASN.1 sequence or null, have tag %d", rv.Tag)
	}
}

func decodeASId(fn string, cert *ResourceCert, fullBytes []byte) error {
	var raw *big.Int
	if err := unmarshalValue(fn, fullBytes, &raw); err != nil {
		return err
	}
	id, err := parseASId(fn, raw)
	if err != nil {
		return err
	}
	if id == 0 {
		return newError(KindSemantic, fn,
			"RFC 3779 section 3.2.3.10 (via RFC 1930): AS identifier zero is reserved")
	}
	return cert.AppendAS(fn, ASResource{Type: ASId, ID: id})
}

func decodeASRangeEntry(fn string, cert *ResourceCert, data []byte) error {
	elems, err := sequenceElements(fn, data)
	if err != nil {
		return err
	}
	if len(elems) != 2 {
		return newError(KindDecode, fn,
			"RFC 3779 section 3.2.3.8: ASRange: want 2 elements, have %d", len(elems))
	}

	bounds := make([]uint32, 2)
	for i, e := range elems {
		if e.Class != asn1.ClassUniversal || e.Tag != asn1.TagInteger {
			return newError(KindDecode, fn,
				"RFC 3779 section 3.2.3.8: ASRange: want ASN.1 integer, have tag %d", e.Tag)
		}
		var raw *big.Int
		if err := unmarshalValue(fn, e.FullBytes, &raw); err != nil {
			return err
		}
		if bounds[i], err = parseASId(fn, raw); err != nil {
			return err
		}
	}

	if bounds[1] == bounds[0] {
		return newError(KindSemantic, fn,
			"RFC 3779 section 3.2.3.8: ASRange: range is singular")
	}
	if bounds[1] < bounds[0] {
		return newError(KindSemantic, fn,
			"RFC 3779 section 3.2.3.8: ASRange: range is out of order")
	}
	return cert.AppendAS(fn, ASResource{Type: ASRange, Min: bounds[0], Max: bounds[1]})
}
