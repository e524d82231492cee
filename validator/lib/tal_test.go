package librpki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeTestTALData(t *testing.T) ([]byte, []byte) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.Nil(t, err)
	spki, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	assert.Nil(t, err)

	b64 := base64.StdEncoding.EncodeToString(spki)
	data := "# example trust anchor\n" +
		"rsync://example.com/ta.cer\n" +
		"https://example.com/ta.cer\n" +
		"\n"
	// the key is conventionally wrapped
	for len(b64) > 60 {
		data += b64[:60] + "\n"
		b64 = b64[60:]
	}
	data += b64 + "\n"
	return []byte(data), spki
}

func TestDecodeTAL(t *testing.T) {
	data, spki := makeTestTALData(t)
	tal, err := DecodeTAL(data)
	assert.Nil(t, err)
	assert.Equal(t, []string{
		"rsync://example.com/ta.cer",
		"https://example.com/ta.cer",
	}, tal.URIs)
	assert.Equal(t, "rsync://example.com/ta.cer", tal.URI())
	assert.Equal(t, spki, tal.PublicKey)
}

func TestDecodeTALMissingKey(t *testing.T) {
	_, err := DecodeTAL([]byte("rsync://example.com/ta.cer\n\n"))
	assert.NotNil(t, err)
}

func TestDecodeTALMissingURI(t *testing.T) {
	_, err := DecodeTAL([]byte("\nAAAA\n"))
	assert.NotNil(t, err)
}

func TestDecodeTALBadKey(t *testing.T) {
	_, err := DecodeTAL([]byte("rsync://example.com/ta.cer\n\nbm90IGEga2V5\n"))
	assert.NotNil(t, err)
}

func TestTALCheckCertificate(t *testing.T) {
	_, _, parsed := makeTestTA(t)
	tal := &TAL{
		URIs:      []string{"rsync://example.com/ta.cer"},
		PublicKey: parsed.RawSubjectPublicKeyInfo,
	}
	assert.True(t, tal.CheckCertificate(parsed))

	_, _, other := makeTestTA(t)
	assert.False(t, tal.CheckCertificate(other))
}
