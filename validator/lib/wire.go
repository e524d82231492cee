package librpki

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// Wire format used to hand a validated certificate across the process
// boundary between the parsing workers and the index owner. Fields are
// written in a fixed order with no tags: expiry, purpose, TAL id, the
// two resource counts, the fixed-size resource records, then the
// strings, each length-prefixed (length zero means absent). All
// integers are little-endian.

const (
	wireIPRecordSize = 1 + 1 + 1 + 16 + 16
	wireASRecordSize = 1 + 4 + 4 + 4
)

// Buffer serializes the certificate record. The underlying X.509
// object does not cross the boundary.
func (cert *ResourceCert) Buffer(buf *bytes.Buffer) {
	var scratch [8]byte

	binary.LittleEndian.PutUint64(scratch[:], uint64(cert.Expires))
	buf.Write(scratch[:8])
	buf.WriteByte(uint8(cert.Purpose))
	binary.LittleEndian.PutUint32(scratch[:4], cert.TALID)
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(cert.IPs)))
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(cert.ASs)))
	buf.Write(scratch[:4])

	var addr [16]byte
	for i := range cert.IPs {
		ip := &cert.IPs[i]
		buf.WriteByte(ip.AFI)
		buf.WriteByte(uint8(ip.Type))
		buf.WriteByte(ip.PrefixLen)
		addr = [16]byte{}
		copy(addr[:], ip.Min)
		buf.Write(addr[:])
		addr = [16]byte{}
		copy(addr[:], ip.Max)
		buf.Write(addr[:])
	}
	for i := range cert.ASs {
		as := &cert.ASs[i]
		buf.WriteByte(uint8(as.Type))
		binary.LittleEndian.PutUint32(scratch[:4], as.ID)
		buf.Write(scratch[:4])
		binary.LittleEndian.PutUint32(scratch[:4], as.Min)
		buf.Write(scratch[:4])
		binary.LittleEndian.PutUint32(scratch[:4], as.Max)
		buf.Write(scratch[:4])
	}

	for _, s := range []string{
		cert.Manifest, cert.Notify, cert.Repository,
		cert.CRL, cert.AIA, cert.AKI, cert.SKI, cert.PubKey,
	} {
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(s)))
		buf.Write(scratch[:4])
		buf.WriteString(s)
	}
}

type wireReader struct {
	data []byte
	off  int
}

func (r *wireReader) take(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.off < n {
		return nil, errors.New("truncated certificate buffer")
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *wireReader) uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *wireReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *wireReader) str() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadCert decodes one serialized certificate record, rejecting
// truncated buffers and trailing garbage. Resource records round-trip
// exactly.
func ReadCert(data []byte) (*ResourceCert, error) {
	r := &wireReader{data: data}
	cert := &ResourceCert{}

	b, err := r.take(8)
	if err != nil {
		return nil, err
	}
	cert.Expires = int64(binary.LittleEndian.Uint64(b))
	purpose, err := r.uint8()
	if err != nil {
		return nil, err
	}
	cert.Purpose = CertPurpose(purpose)
	if cert.TALID, err = r.uint32(); err != nil {
		return nil, err
	}

	ipsz, err := r.uint32()
	if err != nil {
		return nil, err
	}
	asz, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if ipsz > MaxResourceEntries || asz > MaxResourceEntries {
		return nil, fmt.Errorf("resource count %d/%d exceeds maximum %d",
			ipsz, asz, MaxResourceEntries)
	}

	for i := uint32(0); i < ipsz; i++ {
		rec, err := r.take(wireIPRecordSize)
		if err != nil {
			return nil, err
		}
		ip := IPResource{
			AFI:       rec[0],
			Type:      IPResourceType(rec[1]),
			PrefixLen: rec[2],
		}
		if ip.AFI != AFIIPv4 && ip.AFI != AFIIPv6 {
			return nil, fmt.Errorf("invalid AFI %d in IP resource record", ip.AFI)
		}
		if ip.Type > IPRange {
			return nil, fmt.Errorf("invalid IP resource type %d", ip.Type)
		}
		if ip.Type != IPInherit {
			size := familySize(ip.AFI)
			ip.Min = append(net.IP(nil), rec[3:3+size]...)
			ip.Max = append(net.IP(nil), rec[19:19+size]...)
		}
		cert.IPs = append(cert.IPs, ip)
	}

	for i := uint32(0); i < asz; i++ {
		rec, err := r.take(wireASRecordSize)
		if err != nil {
			return nil, err
		}
		as := ASResource{
			Type: ASResourceType(rec[0]),
			ID:   binary.LittleEndian.Uint32(rec[1:5]),
			Min:  binary.LittleEndian.Uint32(rec[5:9]),
			Max:  binary.LittleEndian.Uint32(rec[9:13]),
		}
		if as.Type > ASRange {
			return nil, fmt.Errorf("invalid AS resource type %d", as.Type)
		}
		cert.ASs = append(cert.ASs, as)
	}

	for _, dst := range []*string{
		&cert.Manifest, &cert.Notify, &cert.Repository,
		&cert.CRL, &cert.AIA, &cert.AKI, &cert.SKI, &cert.PubKey,
	} {
		if *dst, err = r.str(); err != nil {
			return nil, err
		}
	}
	if r.off != len(r.data) {
		return nil, errors.New("trailing data after certificate buffer")
	}

	if cert.SKI == "" {
		return nil, errors.New("certificate buffer is missing SKI")
	}
	if cert.Manifest == "" && cert.Purpose != PurposeBgpsecRouter {
		return nil, errors.New("certificate buffer is missing manifest URI")
	}
	return cert, nil
}
