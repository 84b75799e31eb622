package wax

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
)

type fidoU2FAttestationStatement struct {
	Sig []byte   `cbor:"sig"`
	X5C [][]byte `cbor:"x5c"`
}

// verifyFIDOU2FAttestation implements the fido-u2f attestation statement
// verification procedure, which is defined only for EC P-256 credential
// keys and a single attestation certificate.
func verifyFIDOU2FAttestation(obj *AttestationObject, clientDataHash []byte, meta MetadataSource, verifyRoot bool) (*AttestationResult, error) {
	var stmt fidoU2FAttestationStatement
	if err := cbor.Unmarshal(obj.Statement, &stmt); err != nil {
		return nil, fmtWrapErr(KindInvalidCBOR, FormatFIDOU2F, err, "error unmarshaling fido-u2f attestation statement")
	}
	if len(stmt.X5C) != 1 {
		return nil, fmtErr(KindInvalidAttestationCert, FormatFIDOU2F, "fido-u2f attestation requires exactly 1 certificate, got %d", len(stmt.X5C))
	}

	acd := obj.AuthenticatorData.AttestedCredentialData
	if acd == nil {
		return nil, fmtErr(KindInvalidAuthenticatorData, FormatFIDOU2F, "fido-u2f attestation requires attested credential data")
	}

	certs, err := parseDERCertificates(stmt.X5C)
	if err != nil {
		return nil, err
	}
	leaf := certs[0]

	certKey, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok || certKey.Params().BitSize != 256 {
		return nil, fmtErr(KindInvalidAttestationCert, FormatFIDOU2F, "attestation certificate public key must be EC P-256")
	}
	if leaf.SignatureAlgorithm != x509.SHA256WithRSA {
		return nil, fmtErr(KindInvalidAttestationCert, FormatFIDOU2F, "attestation certificate must be signed with sha256WithRSAEncryption, got %s", leaf.SignatureAlgorithm)
	}

	credKey, err := DecodePublicKey(&acd.CredentialPublicKey)
	if err != nil {
		return nil, err
	}
	ecdsaCredKey, ok := credKey.(*ecdsa.PublicKey)
	if !ok || ecdsaCredKey.Curve.Params().BitSize != 256 {
		return nil, fmtErr(KindInvalidPublicKeyAlgorithm, FormatFIDOU2F, "credential public key must be EC P-256 for fido-u2f attestation")
	}
	credKeyU2F := elliptic.Marshal(ecdsaCredKey.Curve, ecdsaCredKey.X, ecdsaCredKey.Y)

	var verificationData bytes.Buffer
	verificationData.WriteByte(0x00)
	verificationData.Write(obj.AuthenticatorData.RPIDHash[:])
	verificationData.Write(clientDataHash)
	verificationData.Write(acd.CredentialID)
	verificationData.Write(credKeyU2F)

	if err := leaf.CheckSignature(x509.ECDSAWithSHA256, verificationData.Bytes(), stmt.Sig); err != nil {
		return nil, fmtWrapErr(KindInvalidSignature, FormatFIDOU2F, err, "fido-u2f attestation signature verification failed")
	}

	if !verifyRoot {
		return &AttestationResult{Type: AttestationUncertain, Format: FormatFIDOU2F, AAGUID: acd.AAGUID, TrustPath: stmt.X5C}, nil
	}

	acki := attestationCertificateKeyID(leaf)
	statement, haveMeta := meta.ByACKI(acki)
	if !haveMeta {
		return nil, fmtErr(KindRootTrustCertificateNotFound, FormatFIDOU2F, "no attestation root certificate found for attestation certificate key id %s", acki)
	}

	roots, err := parseDERCertificates(statement.AttestationRootCertificates)
	if err != nil {
		return nil, err
	}
	if err := verifyTrustPath(certs, roots); err != nil {
		return nil, fmtWrapErr(KindUntrustedAttestation, FormatFIDOU2F, err, "fido-u2f attestation trust path does not chain to a known root")
	}

	return &AttestationResult{Type: resolveAttestationType(statement), Format: FormatFIDOU2F, AAGUID: acd.AAGUID, TrustPath: stmt.X5C}, nil
}

// attestationCertificateKeyID computes the attestation certificate key
// identifier the FIDO Metadata Service indexes fido-u2f (and other
// AAGUID-less) authenticators by: the SHA-1 digest of the certificate's
// subject public key info, hex encoded.
func attestationCertificateKeyID(cert *x509.Certificate) string {
	digest := sha1.Sum(cert.RawSubjectPublicKeyInfo)
	return hex.EncodeToString(digest[:])
}
