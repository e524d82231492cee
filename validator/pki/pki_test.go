package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/rpki-tools/rescert/validator/lib"
	"github.com/stretchr/testify/assert"
)

type testCA struct {
	der  []byte
	priv *rsa.PrivateKey
	cert *x509.Certificate
}

func caExtensions(t *testing.T, repo string) []pkix.Extension {
	ipExt, err := librpki.EncodeIPAddressBlock([]librpki.IPResource{{
		AFI: librpki.AFIIPv4, Type: librpki.IPAddr, PrefixLen: 8,
		Min: net.IP{10, 0, 0, 0}, Max: net.IP{10, 255, 255, 255},
	}})
	assert.Nil(t, err)
	asExt, err := librpki.EncodeASIdentifiers([]librpki.ASResource{
		{Type: librpki.ASRange, Min: 64496, Max: 64511},
	})
	assert.Nil(t, err)
	siaExt, err := librpki.EncodeSIA([]*librpki.SIA{
		{AccessMethod: librpki.CertRepository, GeneralName: []byte(repo)},
		{AccessMethod: librpki.SIAManifest, GeneralName: []byte(repo + "root.mft")},
	})
	assert.Nil(t, err)
	polExt, err := librpki.EncodePolicies("")
	assert.Nil(t, err)
	return []pkix.Extension{*ipExt, *asExt, *siaExt, *polExt}
}

func makeChainTA(t *testing.T, name string, ski []byte) *testCA {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.Nil(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		SubjectKeyId:          ski,
		ExtraExtensions:       caExtensions(t, "rsync://example.com/repo/"),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	assert.Nil(t, err)
	cert, err := x509.ParseCertificate(der)
	assert.Nil(t, err)
	return &testCA{der: der, priv: priv, cert: cert}
}

func makeChainCA(t *testing.T, parent *testCA, name string, ski []byte) *testCA {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.Nil(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		SubjectKeyId:          ski,
		IssuingCertificateURL: []string{"rsync://example.com/ta.cer"},
		CRLDistributionPoints: []string{"rsync://example.com/repo/ta.crl"},
		ExtraExtensions:       caExtensions(t, "rsync://example.com/repo/ca/"),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent.cert, &priv.PublicKey, parent.priv)
	assert.Nil(t, err)
	cert, err := x509.ParseCertificate(der)
	assert.Nil(t, err)
	return &testCA{der: der, priv: priv, cert: cert}
}

func makeChainRouter(t *testing.T, parent *testCA, signer *rsa.PrivateKey,
	asns []librpki.ASResource, ski []byte) []byte {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.Nil(t, err)
	asExt, err := librpki.EncodeASIdentifiers(asns)
	assert.Nil(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(3),
		Subject:               pkix.Name{CommonName: "router"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		SubjectKeyId:          ski,
		UnknownExtKeyUsage:    []asn1.ObjectIdentifier{librpki.BgpsecRouterEKU},
		IssuingCertificateURL: []string{"rsync://example.com/repo/ca.cer"},
		CRLDistributionPoints: []string{"rsync://example.com/repo/ca/ca.crl"},
		ExtraExtensions:       []pkix.Extension{*asExt},
	}
	// CreateCertificate refuses a signer whose key differs from the
	// parent's public key, but skips the check when that key is nil;
	// clearing it lets the bad-signature case build its forged cert.
	issuer := *parent.cert
	issuer.PublicKey = nil
	der, err := x509.CreateCertificate(rand.Reader, tmpl, &issuer, &key.PublicKey, signer)
	assert.Nil(t, err)
	return der
}

func chainTAL(ta *testCA) *librpki.TAL {
	return &librpki.TAL{
		URIs:      []string{"rsync://example.com/ta.cer"},
		PublicKey: ta.cert.RawSubjectPublicKeyInfo,
	}
}

func TestValidatorChain(t *testing.T) {
	ta := makeChainTA(t, "ta", []byte{1, 1, 1, 1})
	ca := makeChainCA(t, ta, "ca", []byte{2, 2, 2, 2})
	router := makeChainRouter(t, ca, ca.priv, []librpki.ASResource{
		{Type: librpki.ASId, ID: 64496},
		{Type: librpki.ASRange, Min: 64500, Max: 64502},
	}, []byte{3, 3, 3, 3})

	v := NewValidator()
	talid := v.AddTAL(chainTAL(ta))
	assert.Equal(t, uint32(0), talid)

	taNode, err := v.AddTA("ta.cer", ta.der, talid)
	assert.Nil(t, err)
	assert.Equal(t, talid, taNode.Cert.TALID)

	caNode, err := v.AddCert("ca.cer", ca.der)
	assert.Nil(t, err)
	assert.Equal(t, taNode, caNode.Parent)
	assert.Equal(t, talid, caNode.Cert.TALID)
	assert.Equal(t, 2, v.Auths.Len())

	// router certificates feed the key registry, not the trust index
	node, err := v.AddCert("router.cer", router)
	assert.Nil(t, err)
	assert.Nil(t, node)
	assert.Equal(t, 2, v.Auths.Len())
	assert.Equal(t, 4, v.BRKs.Len())
}

func TestValidatorUnknownTAL(t *testing.T) {
	ta := makeChainTA(t, "ta", []byte{1, 1, 1, 1})
	v := NewValidator()
	_, err := v.AddTA("ta.cer", ta.der, 0)
	assert.NotNil(t, err)
}

func TestValidatorAnchorKeyMismatch(t *testing.T) {
	ta := makeChainTA(t, "ta", []byte{1, 1, 1, 1})
	other := makeChainTA(t, "other", []byte{8, 8, 8, 8})

	v := NewValidator()
	talid := v.AddTAL(chainTAL(other))
	_, err := v.AddTA("ta.cer", ta.der, talid)
	assert.NotNil(t, err)

	ce, ok := err.(*CertificateError)
	assert.True(t, ok)
	assert.Equal(t, ERROR_ANCHOR, ce.EType)
	assert.Equal(t, 0, v.Auths.Len())
}

func TestValidatorParentUnknown(t *testing.T) {
	ta := makeChainTA(t, "ta", []byte{1, 1, 1, 1})
	ca := makeChainCA(t, ta, "ca", []byte{2, 2, 2, 2})

	v := NewValidator()
	talid := v.AddTAL(chainTAL(ta))

	// out-of-order arrival: the child is retried once its issuer shows up
	_, err := v.AddCert("ca.cer", ca.der)
	assert.NotNil(t, err)
	assert.True(t, IsParentUnknown(err))

	_, err = v.AddTA("ta.cer", ta.der, talid)
	assert.Nil(t, err)
	_, err = v.AddCert("ca.cer", ca.der)
	assert.Nil(t, err)
}

func TestValidatorBadSignature(t *testing.T) {
	ta := makeChainTA(t, "ta", []byte{1, 1, 1, 1})
	imposter := makeChainTA(t, "imposter", []byte{8, 8, 8, 8})
	ca := makeChainCA(t, ta, "ca", []byte{2, 2, 2, 2})
	// issuer fields point at the anchor but the signature comes from
	// another key
	forged := makeChainRouter(t, ta, imposter.priv,
		[]librpki.ASResource{{Type: librpki.ASId, ID: 64500}}, []byte{3, 3, 3, 3})

	v := NewValidator()
	talid := v.AddTAL(chainTAL(ta))
	_, err := v.AddTA("ta.cer", ta.der, talid)
	assert.Nil(t, err)
	_, err = v.AddCert("ca.cer", ca.der)
	assert.Nil(t, err)

	_, err = v.AddCert("forged.cer", forged)
	assert.NotNil(t, err)
	assert.False(t, IsParentUnknown(err))
	ce, ok := err.(*CertificateError)
	assert.True(t, ok)
	assert.Equal(t, ERROR_SEMANTIC, ce.EType)
	assert.Equal(t, 0, v.BRKs.Len())
}

func TestValidatorRouterExpiryMerge(t *testing.T) {
	ta := makeChainTA(t, "ta", []byte{1, 1, 1, 1})
	ca := makeChainCA(t, ta, "ca", []byte{2, 2, 2, 2})
	router := makeChainRouter(t, ca, ca.priv,
		[]librpki.ASResource{{Type: librpki.ASId, ID: 64500}}, []byte{3, 3, 3, 3})

	v := NewValidator()
	talid := v.AddTAL(chainTAL(ta))
	_, err := v.AddTA("ta.cer", ta.der, talid)
	assert.Nil(t, err)
	_, err = v.AddCert("ca.cer", ca.der)
	assert.Nil(t, err)

	// the same file processed twice collapses to one registry entry
	_, err = v.AddCert("router.cer", router)
	assert.Nil(t, err)
	_, err = v.AddCert("router.cer", router)
	assert.Nil(t, err)
	assert.Equal(t, 1, v.BRKs.Len())
}
