package librpki

import (
	"encoding/asn1"
)

// https://tools.ietf.org/html/rfc6487
// https://tools.ietf.org/html/rfc3779
// https://tools.ietf.org/html/rfc7318
// https://tools.ietf.org/html/rfc8209

var (
	IPAddrBlock       = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 7}
	AutonomousSysIds  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 8}
	AuthorityInfoAcc  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 1}
	SubjectInfoAccess = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 11}

	SubjectKeyIdentifier   = asn1.ObjectIdentifier{2, 5, 29, 14}
	CRLDistributionPoints  = asn1.ObjectIdentifier{2, 5, 29, 31}
	CertificatePolicies    = asn1.ObjectIdentifier{2, 5, 29, 32}
	AuthorityKeyIdentifier = asn1.ObjectIdentifier{2, 5, 29, 35}

	// id-cp-ipAddr-asNumber, the one policy RPKI certificates may carry
	CertPolicyRPKI = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 14, 2}
	// id-qt-cps, the one qualifier that policy may carry
	PolicyQualifierCPS = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 2, 1}

	CertRepository = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 5}
	SIAManifest    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 10}
	CertRRDP       = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 13}

	// id-kp-bgpsec-router extended key usage
	BgpsecRouterEKU = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 30}
)

// Address family identifiers from the IANA AFI registry, the only two
// RFC 3779 allows in an sbgp-ipAddrBlock.
const (
	AFIIPv4 uint8 = 1
	AFIIPv6 uint8 = 2
)
