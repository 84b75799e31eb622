package wax

import "bytes"

var emptyCBORMap = []byte{0xa0}

// verifyNoneAttestation verifies the "none" attestation statement, which
// always has an empty CBOR map for its statement and never asserts a
// trust path.
func verifyNoneAttestation(obj *AttestationObject) (*AttestationResult, error) {
	if !bytes.Equal([]byte(obj.Statement), emptyCBORMap) {
		return nil, fmtErr(KindAttestationInvalidType, FormatNone, "attestation format none must have an empty statement, got %x", []byte(obj.Statement))
	}
	result := &AttestationResult{Type: AttestationNone, Format: FormatNone}
	if acd := obj.AuthenticatorData.AttestedCredentialData; acd != nil {
		result.AAGUID = acd.AAGUID
	}
	return result, nil
}
