package wax

import "fmt"

// Kind classifies a failure by what went wrong, not by which Go type
// raised it, per the error taxonomy a relying party needs to decide
// whether to retry, log, or surface to the end user.
type Kind string

// Error kinds, grouped the way they are grouped in the ceremony design:
// malformed input, policy mismatch, cryptographic failure, trust-anchor
// failure, lookup failure, and unsupported features.
const (
	KindInvalidCBOR             Kind = "invalid_cbor"
	KindInvalidAuthenticatorData Kind = "invalid_authenticator_data"
	KindInvalidClientDataJSON   Kind = "invalid_client_data_json"
	KindInvalidCOSEKey          Kind = "invalid_cose_key"

	KindAttestationInvalidType Kind = "attestation_invalid_type"
	KindInvalidChallenge       Kind = "invalid_challenge"
	KindInvalidOrigin          Kind = "attestation_invalid_origin"
	KindInvalidRPID            Kind = "invalid_rp_id"
	KindUserPresentNotSet      Kind = "flag_user_present_not_set"
	KindUserNotVerified        Kind = "user_not_verified"
	KindUntrustedAttestation   Kind = "untrusted_attestation_type"

	KindInvalidSignature      Kind = "invalid_signature"
	KindInvalidAttestationCert Kind = "invalid_attestation_cert"
	KindInvalidPublicKeyAlgorithm Kind = "invalid_public_key_algorithm"

	KindRootTrustCertificateNotFound    Kind = "root_trust_certificate_not_found"
	KindNoAttestationMetadataStatement  Kind = "no_attestation_metadata_statement_found"
	KindNoAttestationRootCertificate    Kind = "no_attestation_root_certificate_found"

	KindIncorrectCredentialID Kind = "incorrect_credential_id_for_user"

	KindUnsupportedAttestationFormat Kind = "unsupported_attestation_format"
	KindUnimplemented                Kind = "unimplemented"

	KindRandomSourceFailure Kind = "random_source_failure"
)

// Error is the single error type returned by every wax operation. Kind is
// stable and suitable for errors.Is comparisons against the sentinels
// below; Msg carries a human-readable detail; Wrapped, when non-nil, is
// the underlying cause (a CBOR decode error, an x509 verification error,
// and so on).
type Error struct {
	Kind    Kind
	Fmt     string // attestation statement format this error pertains to, if any
	Msg     string
	Wrapped error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Fmt != "" {
		s = fmt.Sprintf("%s[%s]", s, e.Fmt)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Wrapped != nil {
		s += ": " + e.Wrapped.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is allows errors.Is(err, Sentinel) to match on Kind alone, ignoring Msg
// and Wrapped, so callers can test "was this an invalid_challenge error"
// without caring about the detail text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, msg string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(msg, args...)}
}

func wrapErr(kind Kind, err error, msg string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(msg, args...), Wrapped: err}
}

func fmtErr(kind Kind, format AttestationStatementFormat, msg string, args ...interface{}) *Error {
	return &Error{Kind: kind, Fmt: string(format), Msg: fmt.Sprintf(msg, args...)}
}

func fmtWrapErr(kind Kind, format AttestationStatementFormat, err error, msg string, args ...interface{}) *Error {
	return &Error{Kind: kind, Fmt: string(format), Msg: fmt.Sprintf(msg, args...), Wrapped: err}
}

// Sentinel errors, one per Kind, for errors.Is comparisons. They carry no
// Msg or Wrapped value; use (*Error).Is semantics, which compares only
// Kind, so a caller can do errors.Is(err, ErrInvalidChallenge) regardless
// of what detail text or cause the concrete error carries.
var (
	ErrInvalidCBOR              = &Error{Kind: KindInvalidCBOR}
	ErrInvalidAuthenticatorData = &Error{Kind: KindInvalidAuthenticatorData}
	ErrInvalidClientDataJSON    = &Error{Kind: KindInvalidClientDataJSON}
	ErrInvalidCOSEKey           = &Error{Kind: KindInvalidCOSEKey}

	ErrAttestationInvalidType = &Error{Kind: KindAttestationInvalidType}
	ErrInvalidChallenge       = &Error{Kind: KindInvalidChallenge}
	ErrInvalidOrigin          = &Error{Kind: KindInvalidOrigin}
	ErrInvalidRPID            = &Error{Kind: KindInvalidRPID}
	ErrUserPresentNotSet      = &Error{Kind: KindUserPresentNotSet}
	ErrUserNotVerified        = &Error{Kind: KindUserNotVerified}
	ErrUntrustedAttestation   = &Error{Kind: KindUntrustedAttestation}

	ErrInvalidSignature          = &Error{Kind: KindInvalidSignature}
	ErrInvalidAttestationCert    = &Error{Kind: KindInvalidAttestationCert}
	ErrInvalidPublicKeyAlgorithm = &Error{Kind: KindInvalidPublicKeyAlgorithm}

	ErrRootTrustCertificateNotFound   = &Error{Kind: KindRootTrustCertificateNotFound}
	ErrNoAttestationMetadataStatement = &Error{Kind: KindNoAttestationMetadataStatement}
	ErrNoAttestationRootCertificate   = &Error{Kind: KindNoAttestationRootCertificate}

	ErrIncorrectCredentialID = &Error{Kind: KindIncorrectCredentialID}

	ErrUnsupportedAttestationFormat = &Error{Kind: KindUnsupportedAttestationFormat}
	ErrUnimplemented                = &Error{Kind: KindUnimplemented}

	ErrRandomSourceFailure = &Error{Kind: KindRandomSourceFailure}
)
