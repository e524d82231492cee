package librpki

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"strings"
)

type SIA struct {
	AccessMethod asn1.ObjectIdentifier
	GeneralName  []byte `asn1:"tag:6"`
}

func (sia *SIA) String() string {
	return "SIA " + sia.AccessMethod.String() + " " + string(sia.GeneralName)
}

// siaLocation checks the URI scheme of one accessLocation and stores it,
// rejecting duplicates of the same access method.
func siaLocation(fn, name, scheme string, value []byte, dst *string) error {
	uri := string(value)
	if !strings.HasPrefix(uri, scheme) {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.8: SIA: %s location %q is not a %s URI", name, uri, scheme)
	}
	if *dst != "" {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.8: SIA: duplicate %s", name)
	}
	*dst = uri
	return nil
}

// decodeSIAExt parses the Subject Information Access extension
// (RFC 6487 4.8.8) and validates the locator set: an rsync repository
// and manifest are mandatory, an https notification URI is optional,
// and the manifest must live inside the repository.
func decodeSIAExt(fn string, cert *ResourceCert, ext pkix.Extension) error {
	if ext.Critical {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.8: SIA: extension not non-critical")
	}

	var sias []SIA
	if err := unmarshalValue(fn, ext.Value, &sias); err != nil {
		return err
	}

	for i := range sias {
		var err error
		switch {
		case sias[i].AccessMethod.Equal(CertRepository):
			err = siaLocation(fn, "caRepository", "rsync://", sias[i].GeneralName, &cert.Repository)
		case sias[i].AccessMethod.Equal(SIAManifest):
			err = siaLocation(fn, "rpkiManifest", "rsync://", sias[i].GeneralName, &cert.Manifest)
		case sias[i].AccessMethod.Equal(CertRRDP):
			err = siaLocation(fn, "rpkiNotify", "https://", sias[i].GeneralName, &cert.Notify)
		}
		if err != nil {
			return err
		}
	}

	if cert.Manifest == "" || cert.Repository == "" {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.8: SIA: missing caRepository or rpkiManifest")
	}
	if !strings.HasPrefix(cert.Manifest, cert.Repository) {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.8: SIA: conflicting URIs for caRepository and rpkiManifest")
	}
	if !strings.HasSuffix(cert.Manifest, ".mft") {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.8: SIA: rpkiManifest is not an MFT file")
	}
	return nil
}

type policyQualifier struct {
	OID   asn1.ObjectIdentifier
	Value asn1.RawValue
}

type policyInformation struct {
	Policy     asn1.ObjectIdentifier
	Qualifiers []policyQualifier `asn1:"optional,omitempty"`
}

// validatePoliciesExt checks the certificatePolicies extension against
// RFC 6487 4.8.9 and RFC 7318: critical, a single policy with the RPKI
// policy OID, and at most one CPS qualifier.
func validatePoliciesExt(fn string, ext pkix.Extension) error {
	if !ext.Critical {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.9: certificatePolicies: extension not critical")
	}

	var policies []policyInformation
	if err := unmarshalValue(fn, ext.Value, &policies); err != nil {
		return err
	}
	if len(policies) != 1 {
		return newError(KindSemantic, fn,
			"RFC 6487 section 4.8.9: certificatePolicies: want 1 policy, got %d", len(policies))
	}

	policy := policies[0]
	if !policy.Policy.Equal(CertPolicyRPKI) {
		return newError(KindSemantic, fn,
			"RFC 7318 section 2: certificatePolicies: unexpected OID %s, want %s",
			policy.Policy.String(), CertPolicyRPKI.String())
	}

	// Policy qualifiers are optional. If they're absent, we're done.
	if len(policy.Qualifiers) == 0 {
		return nil
	}
	if len(policy.Qualifiers) != 1 {
		return newError(KindSemantic, fn,
			"RFC 7318 section 2: certificatePolicies: want 1 policy qualifier, got %d",
			len(policy.Qualifiers))
	}
	if !policy.Qualifiers[0].OID.Equal(PolicyQualifierCPS) {
		return newError(KindSemantic, fn,
			"RFC 7318 section 2: certificatePolicies: want CPS, got %s",
			policy.Qualifiers[0].OID.String())
	}
	return nil
}
