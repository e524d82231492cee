package librpki

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// MaxResourceEntries bounds each resource list. An adversarial
// certificate packed with tiny ranges is cut off here instead of
// growing without limit.
const MaxResourceEntries = 8192

type CertPurpose uint8

const (
	PurposeUnknown CertPurpose = iota
	PurposeCA
	PurposeBgpsecRouter
)

func (p CertPurpose) String() string {
	switch p {
	case PurposeCA:
		return "ca"
	case PurposeBgpsecRouter:
		return "bgpsec-router"
	}
	return "unknown"
}

// ResourceCert is the validated result of parsing one RPKI resource
// certificate. Key identifiers are hex strings, the router public key
// is the base64 SubjectPublicKeyInfo. The record is never mutated after
// validation succeeds.
type ResourceCert struct {
	IPs []IPResource
	ASs []ASResource

	Repository string
	Manifest   string
	Notify     string

	CRL string
	AIA string
	AKI string
	SKI string

	PubKey  string
	Purpose CertPurpose
	Expires int64
	TALID   uint32

	// Underlying decoded certificate, owned by this record.
	Certificate *x509.Certificate `json:"-"`
}

// AppendIP adds one IP entry, rejecting overlaps with stored entries of
// the same family and enforcing the entry ceiling. A rejected append
// leaves the list untouched.
func (cert *ResourceCert) AppendIP(fn string, ip IPResource) error {
	for i := range cert.IPs {
		if ipOverlap(&cert.IPs[i], &ip) {
			return newError(KindSemantic, fn,
				"RFC 3779 section 2.2.3.6: IP resource %s overlaps %s",
				ip.String(), cert.IPs[i].String())
		}
	}
	if len(cert.IPs) >= MaxResourceEntries {
		return newError(KindSemantic, fn,
			"too many IP resource entries (max %d)", MaxResourceEntries)
	}
	cert.IPs = append(cert.IPs, ip)
	return nil
}

// AppendAS adds one AS entry under the same contract as AppendIP.
func (cert *ResourceCert) AppendAS(fn string, as ASResource) error {
	for i := range cert.ASs {
		if asOverlap(&cert.ASs[i], &as) {
			return newError(KindSemantic, fn,
				"RFC 3779 section 3.3: AS resource %s overlaps %s",
				as.String(), cert.ASs[i].String())
		}
	}
	if len(cert.ASs) >= MaxResourceEntries {
		return newError(KindSemantic, fn,
			"too many AS resource entries (max %d)", MaxResourceEntries)
	}
	cert.ASs = append(cert.ASs, as)
	return nil
}

// certPurpose classifies a certificate: a CA certificate carries the
// basicConstraints CA bit, a BGPsec router certificate carries the
// id-kp-bgpsec-router extended key usage (RFC 8209).
func certPurpose(x *x509.Certificate) CertPurpose {
	if x.BasicConstraintsValid && x.IsCA {
		return PurposeCA
	}
	for _, eku := range x.UnknownExtKeyUsage {
		if eku.Equal(BgpsecRouterEKU) {
			return PurposeBgpsecRouter
		}
	}
	return PurposeUnknown
}

// routerPubKey extracts the subject public key of a BGPsec router
// certificate. RFC 8209 requires an ECDSA P-256 key.
func routerPubKey(fn string, x *x509.Certificate) (string, error) {
	pub, ok := x.PublicKey.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return "", newError(KindPurpose, fn,
			"RFC 8209 section 3.3: router certificate public key is not ECDSA P-256")
	}
	return base64.StdEncoding.EncodeToString(x.RawSubjectPublicKeyInfo), nil
}

// ParseCert decodes and partially validates an RPKI resource
// certificate (either a trust anchor candidate or a subordinate) as
// defined in RFC 6487: it scans every extension, dispatching the
// recognized ones and ignoring the rest, extracts the identifying
// fields, classifies the purpose and applies the purpose rules. On any
// failure nothing is returned besides the error.
func ParseCert(fn string, der []byte) (*ResourceCert, error) {
	x, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, wrapError(KindDecode, fn, err, "failed X.509 parse")
	}

	cert := &ResourceCert{
		Certificate: x,
	}

	var siaPresent bool
	for _, ext := range x.Extensions {
		switch {
		case ext.Id.Equal(IPAddrBlock):
			if err := decodeIPAddrBlockExt(fn, cert, ext); err != nil {
				return nil, err
			}
		case ext.Id.Equal(AutonomousSysIds):
			if err := decodeASIdentifiersExt(fn, cert, ext); err != nil {
				return nil, err
			}
		case ext.Id.Equal(SubjectInfoAccess):
			siaPresent = true
			if err := decodeSIAExt(fn, cert, ext); err != nil {
				return nil, err
			}
		case ext.Id.Equal(CertificatePolicies):
			if err := validatePoliciesExt(fn, ext); err != nil {
				return nil, err
			}
		default:
			// unrecognized extensions are ignored for forward compatibility
		}
	}

	cert.AKI = hex.EncodeToString(x.AuthorityKeyId)
	cert.SKI = hex.EncodeToString(x.SubjectKeyId)
	if len(x.IssuingCertificateURL) > 0 {
		cert.AIA = x.IssuingCertificateURL[0]
	}
	if len(x.CRLDistributionPoints) > 0 {
		cert.CRL = x.CRLDistributionPoints[0]
	}
	cert.Expires = x.NotAfter.Unix()
	cert.Purpose = certPurpose(x)

	switch cert.Purpose {
	case PurposeCA:
		if cert.Manifest == "" {
			return nil, newError(KindSemantic, fn,
				"RFC 6487 section 4.8.8: missing SIA")
		}
		if len(cert.ASs) == 0 && len(cert.IPs) == 0 {
			return nil, newError(KindSemantic, fn,
				"missing IP or AS resources")
		}
	case PurposeBgpsecRouter:
		// a router certificate is a signing-key credential, not a
		// resource grant
		if cert.PubKey, err = routerPubKey(fn, x); err != nil {
			return nil, err
		}
		if len(cert.IPs) > 0 {
			return nil, newError(KindPurpose, fn,
				"unexpected IP resources in BGPsec router certificate")
		}
		if siaPresent {
			return nil, newError(KindPurpose, fn,
				"unexpected SIA extension in BGPsec router certificate")
		}
	default:
		return nil, newError(KindSemantic, fn,
			"unable to determine certificate purpose")
	}

	if cert.SKI == "" {
		return nil, newError(KindSemantic, fn,
			"RFC 6487 section 8.4.2: missing SKI")
	}

	return cert, nil
}

// CertParse applies the rules a non-anchor certificate must satisfy
// before it can be linked into a chain.
func CertParse(fn string, cert *ResourceCert) error {
	if cert.AKI == "" {
		return newError(KindSemantic, fn,
			"RFC 6487 section 8.4.2: non-trust anchor missing AKI")
	}
	if cert.AKI == cert.SKI {
		return newError(KindSemantic, fn,
			"RFC 6487 section 8.4.2: non-trust anchor AKI may not match SKI")
	}
	if cert.AIA == "" {
		return newError(KindSemantic, fn,
			"RFC 6487 section 8.4.7: AIA: extension missing")
	}
	if cert.CRL == "" {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.6: CRL: no CRL distribution point extension")
	}
	return nil
}

// TAParse applies the trust-anchor rules: the embedded public key must
// byte-for-byte match the key supplied out-of-band by the TAL, the
// validity window must cover now, and an anchor must not chain to
// anything.
func TAParse(fn string, cert *ResourceCert, talKey []byte, now time.Time) error {
	if _, err := x509.ParsePKIXPublicKey(talKey); err != nil {
		return wrapError(KindAnchor, fn, err,
			"RFC 6487 (trust anchor): bad TAL public key")
	}
	if !bytes.Equal(cert.Certificate.RawSubjectPublicKeyInfo, talKey) {
		return newError(KindAnchor, fn,
			"RFC 6487 (trust anchor): public key does not match TAL public key")
	}
	if cert.Certificate.NotBefore.After(now) {
		return newError(KindAnchor, fn, "certificate not yet valid")
	}
	if now.After(cert.Certificate.NotAfter) {
		return newError(KindAnchor, fn, "certificate has expired")
	}
	if cert.AKI != "" && cert.AKI != cert.SKI {
		return newError(KindAnchor, fn,
			"RFC 6487 section 8.4.2: trust anchor AKI, if specified, must match SKI")
	}
	if cert.AIA != "" {
		return newError(KindAnchor, fn,
			"RFC 6487 section 8.4.7: trust anchor must not have AIA")
	}
	if cert.CRL != "" {
		return newError(KindAnchor, fn,
			"RFC 6487 section 8.4.2: trust anchor may not specify CRL resource")
	}
	if cert.Purpose == PurposeBgpsecRouter {
		return newError(KindAnchor, fn,
			"BGPsec router certificate cannot be a trust anchor")
	}
	return nil
}
