package pki

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/getsentry/sentry-go"
	"github.com/rpki-tools/rescert/validator/lib"
)

const (
	ERROR_DECODE = iota
	ERROR_SEMANTIC
	ERROR_PURPOSE
	ERROR_ANCHOR
)

type stack []uintptr
type Frame uintptr

var (
	ErrorTypeToName = map[int]string{
		ERROR_DECODE:   "decode",
		ERROR_SEMANTIC: "semantic",
		ERROR_PURPOSE:  "purpose",
		ERROR_ANCHOR:   "anchor",
	}
)

// CertificateError wraps a single-certificate rejection on its way out
// of the chain builder. Rejections are always recoverable: the one
// certificate is dropped and processing continues.
type CertificateError struct {
	EType int

	InnerErr error
	Message  string

	Certificate *librpki.ResourceCert
	File        string

	Stack *stack

	parentUnknown bool
}

// IsParentUnknown reports whether a rejection only means the issuer has
// not been seen yet; callers exploring files in arbitrary order retry
// those once more certificates are in the index.
func IsParentUnknown(err error) bool {
	var ce *CertificateError
	if errors.As(err, &ce) {
		return ce.parentUnknown
	}
	return false
}

func callers() *stack {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	var st stack = pcs[0:n]
	return &st
}

// This function returns the Stacktrace of the error.
// The naming scheme corresponds to what Sentry fetches
// https://github.com/getsentry/sentry-go/blob/master/stacktrace.go#L49
func StackTrace(s *stack) []Frame {
	f := make([]Frame, len(*s))
	for i := 0; i < len(f); i++ {
		f[i] = Frame((*s)[i])
	}
	return f
}

func (e *CertificateError) StackTrace() []Frame {
	return StackTrace(e.Stack)
}

func (e *CertificateError) Error() string {
	certinfo := "for certificate"
	if e.Certificate != nil {
		certinfo = fmt.Sprintf("for certificate ski:%s aki:%s",
			e.Certificate.SKI, e.Certificate.AKI)
	}

	var err string
	if e.InnerErr != nil {
		err = fmt.Sprintf(": %s", e.InnerErr.Error())
	}
	return fmt.Sprintf("%s %s%s", e.Message, certinfo, err)
}

func (e *CertificateError) Unwrap() error {
	return e.InnerErr
}

func (e *CertificateError) SetSentryScope(scope *sentry.Scope) {
	scope.SetTag("Type", ErrorTypeToName[e.EType])

	if e.Certificate != nil {
		scope.SetTag("Certificate.SubjectKeyId", e.Certificate.SKI)
		scope.SetTag("Certificate.AuthorityKeyId", e.Certificate.AKI)
		scope.SetTag("Certificate.Purpose", e.Certificate.Purpose.String())
		scope.SetExtra("Certificate.Expires", e.Certificate.Expires)
		scope.SetExtra("Certificate.IP", e.Certificate.IPs)
		scope.SetExtra("Certificate.ASN", e.Certificate.ASs)
	}
	if e.File != "" {
		scope.SetTag("File.Path", e.File)
	}
}

// newCertificateError classifies an error coming out of the parsing
// layer; the library's error kinds map one-to-one onto the EType enum.
func newCertificateError(file string, cert *librpki.ResourceCert, err error) *CertificateError {
	etype := ERROR_DECODE
	message := "parse issue"

	var ce *librpki.CertError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case librpki.KindSemantic:
			etype = ERROR_SEMANTIC
			message = "profile issue"
		case librpki.KindPurpose:
			etype = ERROR_PURPOSE
			message = "purpose issue"
		case librpki.KindAnchor:
			etype = ERROR_ANCHOR
			message = "trust anchor issue"
		}
	}

	return &CertificateError{
		EType:       etype,
		Certificate: cert,
		InnerErr:    err,
		Message:     message,
		File:        file,
		Stack:       callers(),
	}
}

func newCertificateErrorParent(file string, cert *librpki.ResourceCert) *CertificateError {
	return &CertificateError{
		EType:         ERROR_SEMANTIC,
		Certificate:   cert,
		Message:       fmt.Sprintf("could not find parent %s", cert.AKI),
		File:          file,
		Stack:         callers(),
		parentUnknown: true,
	}
}

// IntegrityError means two accepted certificates share a subject key
// identifier: the trust index can no longer be trusted and the process
// must abort rather than continue with a corrupted trust graph. It is
// delivered by panic, never as a return value.
type IntegrityError struct {
	SKI string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("trust index corrupted: duplicate subject key id %s", e.SKI)
}
