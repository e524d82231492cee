package librpki

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"strings"
)

// TAL is a decoded Trust Anchor Locator (RFC 8630): one or more URIs of
// the anchor certificate and the DER SubjectPublicKeyInfo the anchor
// must carry.
type TAL struct {
	URIs      []string
	PublicKey []byte
}

// URI returns the preferred (first) anchor location.
func (tal *TAL) URI() string {
	if len(tal.URIs) == 0 {
		return ""
	}
	return tal.URIs[0]
}

// CheckCertificate reports whether the certificate embeds exactly the
// TAL's public key.
func (tal *TAL) CheckCertificate(cert *x509.Certificate) bool {
	return string(cert.RawSubjectPublicKeyInfo) == string(tal.PublicKey)
}

// DecodeTAL parses a Trust Anchor Locator: optional comment lines,
// URI lines, a blank separator, then the base64 public key.
func DecodeTAL(data []byte) (*TAL, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	tal := &TAL{}
	var i int
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		tal.URIs = append(tal.URIs, line)
	}
	if len(tal.URIs) == 0 {
		return nil, errors.New("TAL has no certificate URI")
	}

	b64 := strings.Join(lines[i:], "")
	b64 = strings.ReplaceAll(b64, " ", "")
	if b64 == "" {
		return nil, errors.New("TAL has no public key")
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if _, err := x509.ParsePKIXPublicKey(key); err != nil {
		return nil, err
	}
	tal.PublicKey = key
	return tal, nil
}
