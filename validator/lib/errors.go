package librpki

import (
	"fmt"
)

type ErrorKind int

const (
	// Malformed DER or wrong ASN.1 structure
	KindDecode ErrorKind = iota
	// RFC 6487/3779 rule violation
	KindSemantic
	// Content inconsistent with the certificate purpose
	KindPurpose
	// Trust-anchor specific check failed
	KindAnchor
)

var kindToName = map[ErrorKind]string{
	KindDecode:   "decode",
	KindSemantic: "semantic",
	KindPurpose:  "purpose",
	KindAnchor:   "anchor",
}

func (k ErrorKind) String() string {
	if n, ok := kindToName[k]; ok {
		return n
	}
	return "unknown"
}

// CertError reports why a single certificate was rejected. It identifies
// the file being parsed and cites the violated rule; it never indicates
// anything wrong beyond that one certificate.
type CertError struct {
	Kind    ErrorKind
	Fn      string
	Message string
	Err     error
}

func (e *CertError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Fn, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Fn, e.Message)
}

func (e *CertError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, fn string, format string, args ...interface{}) *CertError {
	return &CertError{
		Kind:    kind,
		Fn:      fn,
		Message: fmt.Sprintf(format, args...),
	}
}

func wrapError(kind ErrorKind, fn string, err error, format string, args ...interface{}) *CertError {
	return &CertError{
		Kind:    kind,
		Fn:      fn,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
