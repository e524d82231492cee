package pki

import (
	"fmt"
	"time"

	"github.com/rpki-tools/rescert/validator/lib"
)

type Log interface {
	Debugf(string, ...interface{})
	Printf(string, ...interface{})
	Errorf(string, ...interface{})
	Warnf(string, ...interface{})
}

// Validator owns the trust index and the router-key registry and links
// parsed certificates into them. Parsing itself is pure and may run on
// any number of workers; a Validator instance must only ever be driven
// by one of them.
type Validator struct {
	Auths *AuthTree
	BRKs  *BRKTree

	TALs []*librpki.TAL
	Time time.Time
	Log  Log
}

func NewValidator() *Validator {
	return &Validator{
		Auths: NewAuthTree(),
		BRKs:  NewBRKTree(),
		Time:  time.Now().UTC(),
	}
}

// AddTAL registers a trust anchor locator and returns the group id
// carried by every certificate accepted under it.
func (v *Validator) AddTAL(tal *librpki.TAL) uint32 {
	v.TALs = append(v.TALs, tal)
	return uint32(len(v.TALs) - 1)
}

// AddTA validates a trust anchor candidate against its TAL and roots it
// in the trust index.
func (v *Validator) AddTA(fn string, der []byte, talid uint32) (*AuthNode, error) {
	if int(talid) >= len(v.TALs) {
		return nil, fmt.Errorf("unknown TAL id %d", talid)
	}
	cert, err := librpki.ParseCert(fn, der)
	if err != nil {
		return nil, newCertificateError(fn, nil, err)
	}
	if err := librpki.TAParse(fn, cert, v.TALs[talid].PublicKey, v.Time); err != nil {
		return nil, newCertificateError(fn, cert, err)
	}
	cert.TALID = talid

	node := v.Auths.Insert(cert, nil)
	if v.Log != nil {
		v.Log.Debugf("accepted trust anchor %v (ski %v)", fn, cert.SKI)
	}
	return node, nil
}

// AddCert validates a subordinate certificate, resolves its issuer
// through the trust index, and routes it by purpose: CA certificates
// join the index, router certificates expand into the registry. The
// returned node is nil for router certificates.
func (v *Validator) AddCert(fn string, der []byte) (*AuthNode, error) {
	cert, err := librpki.ParseCert(fn, der)
	if err != nil {
		return nil, newCertificateError(fn, nil, err)
	}
	if err := librpki.CertParse(fn, cert); err != nil {
		return nil, newCertificateError(fn, cert, err)
	}

	parent := v.Auths.FindByKeyID(cert.AKI)
	if parent == nil {
		return nil, newCertificateErrorParent(fn, cert)
	}

	// signature verification is the certificate library's concern
	if err := cert.Certificate.CheckSignatureFrom(parent.Cert.Certificate); err != nil {
		return nil, &CertificateError{
			EType:       ERROR_SEMANTIC,
			Certificate: cert,
			InnerErr:    err,
			Message:     "signature issue",
			File:        fn,
			Stack:       callers(),
		}
	}

	cert.TALID = parent.Cert.TALID

	if cert.Purpose == librpki.PurposeBgpsecRouter {
		if err := v.BRKs.InsertCertKeys(fn, cert); err != nil {
			return nil, err
		}
		if v.Log != nil {
			v.Log.Debugf("accepted router certificate %v (ski %v)", fn, cert.SKI)
		}
		return nil, nil
	}

	node := v.Auths.Insert(cert, parent)
	if v.Log != nil {
		v.Log.Debugf("accepted certificate %v (ski %v)", fn, cert.SKI)
	}
	return node, nil
}
