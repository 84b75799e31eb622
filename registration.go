package wax

import "crypto/sha256"

// RegistrationResponse is the caller-provided, browser-produced result of
// a navigator.credentials.create() call, passed through to
// FinishRegistration unmodified.
type RegistrationResponse struct {
	CredentialID           []byte
	ClientDataJSON         []byte
	AttestationObject      []byte
	ClientExtensionResults ClientExtensionOutputs
}

// RegisteredCredential is what FinishRegistration returns on success: the
// data a caller needs to persist to allow this credential to
// authenticate in the future.
type RegisteredCredential struct {
	CredentialID []byte
	PublicKey    COSEKey
	SignCount    uint32
	AAGUID       AAGUID
	Attestation  AttestationResult
}

// FinishRegistration validates resp against ch and, if every check
// passes, returns the credential to persist. It implements the
// registration ceremony's verification procedure in order; the first
// failing step determines the returned error's Kind.
func FinishRegistration(ch *Challenge, resp *RegistrationResponse, meta MetadataSource) (*RegisteredCredential, error) {
	clientData, err := parseClientData(resp.ClientDataJSON)
	if err != nil {
		return nil, err
	}

	if err := verifyClientDataType(clientData, ClientDataTypeCreate); err != nil {
		return nil, err
	}

	if err := CompareChallenge(clientData, ch.Bytes[:]); err != nil {
		return nil, err
	}

	if err := verifyClientDataOrigin(clientData, ch.Origin); err != nil {
		return nil, err
	}

	if err := verifyTokenBinding(clientData); err != nil {
		return nil, err
	}

	clientDataHash := sha256.Sum256(resp.ClientDataJSON)

	attObj, err := decodeAttestationObject(resp.AttestationObject)
	if err != nil {
		return nil, err
	}
	authData := attObj.AuthenticatorData

	if authData.RPIDHash != sha256.Sum256([]byte(ch.RPID)) {
		return nil, newErr(KindInvalidRPID, "authenticator data rpIdHash does not match expected rp_id %q", ch.RPID)
	}

	if !authData.UserPresent {
		return nil, ErrUserPresentNotSet
	}
	if ch.UserVerifiedRequired && !authData.UserVerified {
		return nil, ErrUserNotVerified
	}

	if authData.AttestedCredentialData == nil {
		return nil, newErr(KindInvalidAuthenticatorData, "registration authenticator data has no attested credential data")
	}

	result, err := verifyAttestationStatement(attObj, clientDataHash[:], meta, ch.VerifyTrustRoot)
	if err != nil {
		return nil, err
	}

	if !attestationTypeAllowed(result.Type, ch.TrustedAttestationTypes) {
		return nil, newErr(KindUntrustedAttestation, "attestation type %q is not in the trusted set", result.Type)
	}

	acd := authData.AttestedCredentialData
	return &RegisteredCredential{
		CredentialID: acd.CredentialID,
		PublicKey:    acd.CredentialPublicKey,
		SignCount:    authData.SignCount,
		AAGUID:       acd.AAGUID,
		Attestation:  *result,
	}, nil
}
