package wax

import "github.com/fxamacker/cbor/v2"

// tpmAttestationStatement is the shape of a tpm attestation statement,
// per its CBOR fields (ver, alg, x5c or ecdaaKeyId, sig, certInfo,
// pubArea). wax recognizes the format but does not implement the TPM2B
// structure parsing and quote verification the full procedure requires.
type tpmAttestationStatement struct {
	Ver      string          `cbor:"ver"`
	Alg      int             `cbor:"alg"`
	X5C      [][]byte        `cbor:"x5c,omitempty"`
	Sig      []byte          `cbor:"sig"`
	CertInfo []byte          `cbor:"certInfo"`
	PubArea  []byte          `cbor:"pubArea"`
	Extra    cbor.RawMessage `cbor:"-"`
}

// verifyTPMAttestation recognizes a well-formed tpm attestation
// statement but always reports it as unimplemented: the quote
// verification procedure requires parsing TPMS_ATTEST and TPMT_PUBLIC
// structures that this package does not implement.
func verifyTPMAttestation(obj *AttestationObject, clientDataHash []byte) (*AttestationResult, error) {
	var stmt tpmAttestationStatement
	if err := cbor.Unmarshal(obj.Statement, &stmt); err != nil {
		return nil, fmtWrapErr(KindInvalidCBOR, FormatTPM, err, "error unmarshaling tpm attestation statement")
	}
	if stmt.Ver != "2.0" {
		return nil, fmtErr(KindAttestationInvalidType, FormatTPM, "unsupported tpm attestation version %q", stmt.Ver)
	}
	return nil, fmtErr(KindUnimplemented, FormatTPM, "tpm attestation quote verification is not implemented")
}
