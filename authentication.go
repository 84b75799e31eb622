package wax

import "crypto/sha256"

// AssertionResponse is the caller-provided, browser-produced result of a
// navigator.credentials.get() call.
type AssertionResponse struct {
	CredentialID           []byte
	ClientDataJSON         []byte
	AuthenticatorData      []byte
	Signature              []byte
	UserHandle             []byte
	ClientExtensionResults ClientExtensionOutputs
}

// AssertionResult is what FinishAuthentication returns on success.
type AssertionResult struct {
	CredentialID []byte
	SignCount    uint32
	UserHandle   []byte
}

// FinishAuthentication verifies resp against ch and the public key stored
// for the credential it claims to be, per the authentication ceremony's
// verification procedure. Sign-count regression is not checked here: the
// returned SignCount is left for the caller to compare against its stored
// value (SignCountRegressed does that comparison), since some
// authenticators legitimately never increment it.
func FinishAuthentication(ch *Challenge, resp *AssertionResponse) (*AssertionResult, error) {
	allowed, err := ch.findAllowedCredential(resp.CredentialID)
	if err != nil {
		return nil, err
	}

	clientData, err := parseClientData(resp.ClientDataJSON)
	if err != nil {
		return nil, err
	}

	if err := verifyClientDataType(clientData, ClientDataTypeGet); err != nil {
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

	authData, err := parseAuthenticatorData(resp.AuthenticatorData)
	if err != nil {
		return nil, err
	}

	if authData.RPIDHash != sha256.Sum256([]byte(ch.RPID)) {
		return nil, newErr(KindInvalidRPID, "authenticator data rpIdHash does not match expected rp_id %q", ch.RPID)
	}

	if !authData.UserPresent {
		return nil, ErrUserPresentNotSet
	}
	if ch.UserVerifiedRequired && !authData.UserVerified {
		return nil, ErrUserNotVerified
	}

	clientDataHash := sha256.Sum256(resp.ClientDataJSON)
	signed := append(append([]byte{}, resp.AuthenticatorData...), clientDataHash[:]...)

	if err := VerifySignature(&allowed.PublicKey, signed, resp.Signature); err != nil {
		return nil, err
	}

	return &AssertionResult{
		CredentialID: resp.CredentialID,
		SignCount:    authData.SignCount,
		UserHandle:   resp.UserHandle,
	}, nil
}

// SignCountRegressed reports whether newCount fails to advance past
// lastCount, the simplest signal that a credential's private key may
// have been cloned onto another authenticator. A stored lastCount of 0
// (common for authenticators that never implement the counter) never
// regresses.
func SignCountRegressed(lastCount, newCount uint32) bool {
	if lastCount == 0 {
		return false
	}
	return newCount <= lastCount
}
