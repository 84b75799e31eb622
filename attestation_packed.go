package wax

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"

	"github.com/fxamacker/cbor/v2"
)

var oidFIDOGenCEAAGUID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 45724, 1, 1, 4}

type packedAttestationStatement struct {
	Alg        int             `cbor:"alg"`
	Sig        []byte          `cbor:"sig"`
	X5C        [][]byte        `cbor:"x5c,omitempty"`
	ECDAAKeyID cbor.RawMessage `cbor:"ecdaaKeyId,omitempty"`
}

// verifyPackedAttestation implements the packed attestation statement
// verification procedure: either full (x5c-chained) attestation signed
// by a dedicated attestation key, or self attestation signed by the
// credential's own private key.
func verifyPackedAttestation(obj *AttestationObject, clientDataHash []byte, meta MetadataSource, verifyRoot bool) (*AttestationResult, error) {
	var stmt packedAttestationStatement
	if err := cbor.Unmarshal(obj.Statement, &stmt); err != nil {
		return nil, fmtWrapErr(KindInvalidCBOR, FormatPacked, err, "error unmarshaling packed attestation statement")
	}
	if len(stmt.ECDAAKeyID) > 0 {
		return nil, fmtErr(KindUnimplemented, FormatPacked, "ECDAA packed attestation is not implemented")
	}

	signed := append(append([]byte{}, obj.RawAuthenticatorData...), clientDataHash...)
	acd := obj.AuthenticatorData.AttestedCredentialData
	if acd == nil {
		return nil, fmtErr(KindInvalidAuthenticatorData, FormatPacked, "packed attestation requires attested credential data")
	}

	if len(stmt.X5C) == 0 {
		return verifyPackedSelfAttestation(&stmt, acd, signed)
	}
	return verifyPackedFullAttestation(&stmt, acd, signed, meta, verifyRoot)
}

func verifyPackedSelfAttestation(stmt *packedAttestationStatement, acd *AttestedCredentialData, signed []byte) (*AttestationResult, error) {
	if stmt.Alg != acd.CredentialPublicKey.Alg {
		return nil, fmtErr(KindInvalidPublicKeyAlgorithm, FormatPacked, "self attestation algorithm %d does not match credential algorithm %d", stmt.Alg, acd.CredentialPublicKey.Alg)
	}
	if err := VerifySignature(&acd.CredentialPublicKey, signed, stmt.Sig); err != nil {
		return nil, fmtWrapErr(KindInvalidSignature, FormatPacked, err, "self attestation signature verification failed")
	}
	return &AttestationResult{Type: AttestationSelf, Format: FormatPacked, AAGUID: acd.AAGUID}, nil
}

func verifyPackedFullAttestation(stmt *packedAttestationStatement, acd *AttestedCredentialData, signed []byte, meta MetadataSource, verifyRoot bool) (*AttestationResult, error) {
	certs, err := parseDERCertificates(stmt.X5C)
	if err != nil {
		return nil, err
	}
	leaf := certs[0]

	sigAlg, err := x509SignatureAlgorithm(COSEAlgorithmIdentifier(stmt.Alg))
	if err != nil {
		return nil, fmtWrapErr(KindInvalidPublicKeyAlgorithm, FormatPacked, err, "unsupported packed attestation algorithm")
	}
	if err := leaf.CheckSignature(sigAlg, signed, stmt.Sig); err != nil {
		return nil, fmtWrapErr(KindInvalidSignature, FormatPacked, err, "packed attestation signature verification failed")
	}

	if err := verifyPackedAttestationCertSubject(leaf); err != nil {
		return nil, fmtWrapErr(KindInvalidAttestationCert, FormatPacked, err, "attestation certificate does not meet packed requirements")
	}
	if err := matchAAGUIDExtension(leaf, acd.AAGUID); err != nil {
		return nil, fmtWrapErr(KindInvalidAttestationCert, FormatPacked, err, "attestation certificate AAGUID extension mismatch")
	}

	if !verifyRoot {
		return &AttestationResult{Type: AttestationUncertain, Format: FormatPacked, AAGUID: acd.AAGUID, TrustPath: stmt.X5C}, nil
	}

	statement, haveMeta := meta.ByAAGUID(acd.AAGUID)
	if !haveMeta {
		return nil, fmtErr(KindNoAttestationMetadataStatement, FormatPacked, "no metadata statement found for aaguid %s", acd.AAGUID)
	}

	roots, err := parseDERCertificates(statement.AttestationRootCertificates)
	if err != nil {
		return nil, err
	}
	if err := verifyTrustPath(certs, roots); err != nil {
		return nil, fmtWrapErr(KindUntrustedAttestation, FormatPacked, err, "packed attestation trust path does not chain to a known root")
	}

	return &AttestationResult{Type: resolveAttestationType(statement), Format: FormatPacked, AAGUID: acd.AAGUID, TrustPath: stmt.X5C}, nil
}

func verifyPackedAttestationCertSubject(c *x509.Certificate) error {
	subject := c.Subject
	if len(subject.Country) == 0 || len(subject.Country[0]) != 2 {
		return newErr(KindInvalidAttestationCert, "certificate country code must be a two character ISO 3166 code")
	}
	if len(subject.Organization) == 0 {
		return newErr(KindInvalidAttestationCert, "certificate is missing an organization name")
	}
	if len(subject.OrganizationalUnit) == 0 || subject.OrganizationalUnit[0] != "Authenticator Attestation" {
		return newErr(KindInvalidAttestationCert, `certificate organizational unit must be "Authenticator Attestation"`)
	}
	if subject.CommonName == "" {
		return newErr(KindInvalidAttestationCert, "certificate is missing a common name")
	}
	if c.IsCA {
		return newErr(KindInvalidAttestationCert, "attestation certificate must not be a CA certificate")
	}
	return nil
}

func matchAAGUIDExtension(c *x509.Certificate, aaguid AAGUID) error {
	for _, ext := range c.Extensions {
		if !ext.Id.Equal(oidFIDOGenCEAAGUID) {
			continue
		}
		if ext.Critical {
			return newErr(KindInvalidAttestationCert, "aaguid certificate extension must not be critical")
		}
		var raw asn1.RawValue
		if _, err := asn1.Unmarshal(ext.Value, &raw); err != nil {
			return wrapErr(KindInvalidAttestationCert, err, "error unmarshaling aaguid certificate extension")
		}
		if !bytes.Equal(raw.Bytes, aaguid[:]) {
			return newErr(KindInvalidAttestationCert, "aaguid certificate extension does not match attested aaguid")
		}
		return nil
	}
	return nil
}

func x509SignatureAlgorithm(alg COSEAlgorithmIdentifier) (x509.SignatureAlgorithm, error) {
	switch alg {
	case AlgorithmES256:
		return x509.ECDSAWithSHA256, nil
	case AlgorithmES384:
		return x509.ECDSAWithSHA384, nil
	case AlgorithmES512:
		return x509.ECDSAWithSHA512, nil
	case AlgorithmRS256:
		return x509.SHA256WithRSA, nil
	case AlgorithmRS384:
		return x509.SHA384WithRSA, nil
	case AlgorithmRS512:
		return x509.SHA512WithRSA, nil
	case AlgorithmPS256:
		return x509.SHA256WithRSAPSS, nil
	case AlgorithmPS384:
		return x509.SHA384WithRSAPSS, nil
	case AlgorithmPS512:
		return x509.SHA512WithRSAPSS, nil
	default:
		return 0, newErr(KindInvalidPublicKeyAlgorithm, "COSE algorithm %d has no x509 signature algorithm mapping", alg)
	}
}
