package wax

import "github.com/fxamacker/cbor/v2"

// AttestationStatementFormat names the CBOR-encoded attestation statement
// format carried in an attestation object's "fmt" field.
type AttestationStatementFormat string

const (
	FormatNone              AttestationStatementFormat = "none"
	FormatPacked            AttestationStatementFormat = "packed"
	FormatFIDOU2F           AttestationStatementFormat = "fido-u2f"
	FormatAndroidSafetyNet  AttestationStatementFormat = "android-safetynet"
	FormatTPM               AttestationStatementFormat = "tpm"
)

// AttestationType classifies the trust relationship a verified attestation
// statement establishes, independent of which wire format produced it.
type AttestationType string

const (
	AttestationNone       AttestationType = "none"
	AttestationBasic      AttestationType = "basic"
	AttestationSelf       AttestationType = "self"
	AttestationAttCA      AttestationType = "attca"
	AttestationUncertain  AttestationType = "uncertain"
)

// AttestationObject is the decoded form of the CBOR attestation object a
// client returns from a creation ceremony.
type AttestationObject struct {
	Format             AttestationStatementFormat
	RawAuthenticatorData []byte
	AuthenticatorData  AuthenticatorData
	Statement          cbor.RawMessage
}

// AttestationResult is what a format verifier returns once it has checked
// a statement against its authenticator data and client data hash.
type AttestationResult struct {
	Type        AttestationType
	Format      AttestationStatementFormat
	TrustPath   [][]byte // DER-encoded certificates as carried in the statement's x5c, leaf first
	AAGUID      AAGUID
}

type rawAttestationObject struct {
	Fmt      string          `cbor:"fmt"`
	AuthData []byte          `cbor:"authData"`
	AttStmt  cbor.RawMessage `cbor:"attStmt"`
}

// decodeAttestationObject parses the raw CBOR attestation object without
// re-serializing authData, preserving the exact bytes the authenticator
// signed over.
func decodeAttestationObject(raw []byte) (*AttestationObject, error) {
	var r rawAttestationObject
	if err := cbor.Unmarshal(raw, &r); err != nil {
		return nil, wrapErr(KindInvalidCBOR, err, "error unmarshaling attestation object")
	}
	authData, err := parseAuthenticatorData(r.AuthData)
	if err != nil {
		return nil, err
	}
	return &AttestationObject{
		Format:                AttestationStatementFormat(r.Fmt),
		RawAuthenticatorData:  r.AuthData,
		AuthenticatorData:     *authData,
		Statement:             r.AttStmt,
	}, nil
}

// verifyAttestationStatement dispatches to the verifier for obj.Format by
// a plain switch: the set of supported formats is fixed at compile time,
// never extended by runtime registration. verifyRoot gates whether
// packed and fido-u2f additionally verify their trust path against a
// MetadataSource; android-safetynet always verifies its trust path
// against its fixed root, and tpm is recognized but always reported as
// unimplemented.
func verifyAttestationStatement(obj *AttestationObject, clientDataHash []byte, meta MetadataSource, verifyRoot bool) (*AttestationResult, error) {
	switch obj.Format {
	case FormatNone:
		return verifyNoneAttestation(obj)
	case FormatPacked:
		return verifyPackedAttestation(obj, clientDataHash, meta, verifyRoot)
	case FormatFIDOU2F:
		return verifyFIDOU2FAttestation(obj, clientDataHash, meta, verifyRoot)
	case FormatAndroidSafetyNet:
		return verifyAndroidSafetyNetAttestation(obj, clientDataHash)
	case FormatTPM:
		return verifyTPMAttestation(obj, clientDataHash)
	default:
		return nil, fmtErr(KindUnsupportedAttestationFormat, obj.Format, "unrecognized attestation statement format %q", obj.Format)
	}
}

// DecodeAttestationObject parses a raw CBOR attestation object, exposed
// for callers that want to inspect it (format, AAGUID, sign count)
// before or independent of running the full registration ceremony.
func DecodeAttestationObject(raw []byte) (*AttestationObject, error) {
	return decodeAttestationObject(raw)
}

// attestationTypeAllowed reports whether result.Type appears in allowed,
// per the Challenge's TrustedAttestationTypes policy.
func attestationTypeAllowed(t AttestationType, allowed []AttestationType) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}
