package wax

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
)

// ClientDataType distinguishes a creation ceremony's client data from an
// assertion ceremony's.
type ClientDataType string

const (
	ClientDataTypeCreate ClientDataType = "webauthn.create"
	ClientDataTypeGet    ClientDataType = "webauthn.get"
)

// TokenBindingStatus is the state of the Token Binding protocol on the
// connection the client used, as reported in client data.
type TokenBindingStatus string

const (
	TokenBindingSupported TokenBindingStatus = "supported"
	TokenBindingPresent   TokenBindingStatus = "present"
)

type clientDataTokenBinding struct {
	Status TokenBindingStatus `json:"status"`
	ID     string              `json:"id,omitempty"`
}

// CollectedClientData is the parsed form of the UTF-8 JSON document the
// client produces and signs over (indirectly, via its hash) during every
// ceremony.
type CollectedClientData struct {
	Raw          []byte
	Type         ClientDataType
	Challenge    string
	Origin       string
	TokenBinding *clientDataTokenBinding
}

type rawClientData struct {
	Type         ClientDataType           `json:"type"`
	Challenge    string                   `json:"challenge"`
	Origin       string                   `json:"origin"`
	TokenBinding *clientDataTokenBinding `json:"tokenBinding,omitempty"`
}

// parseClientData parses raw client data JSON, retaining the exact bytes
// so the caller can hash them independent of any struct re-encoding.
func parseClientData(raw []byte) (*CollectedClientData, error) {
	var r rawClientData
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, wrapErr(KindInvalidClientDataJSON, err, "error unmarshaling client data JSON")
	}
	return &CollectedClientData{
		Raw:          raw,
		Type:         r.Type,
		Challenge:    r.Challenge,
		Origin:       r.Origin,
		TokenBinding: r.TokenBinding,
	}, nil
}

// CompareChallenge compares the base64url-encoded challenge embedded in
// client data against the raw challenge bytes sent to the authenticator.
func CompareChallenge(c *CollectedClientData, challenge []byte) error {
	decoded, err := base64.RawURLEncoding.DecodeString(c.Challenge)
	if err != nil {
		return wrapErr(KindInvalidChallenge, err, "client data challenge is not valid base64url")
	}
	if !bytes.Equal(decoded, challenge) {
		return newErr(KindInvalidChallenge, "challenge mismatch: got % X, expected % X", decoded, challenge)
	}
	return nil
}

// verifyClientDataType checks that client data carries the ceremony type
// the caller expects.
func verifyClientDataType(c *CollectedClientData, want ClientDataType) error {
	if c.Type != want {
		return newErr(KindInvalidClientDataJSON, "client data type %q, expected %q", c.Type, want)
	}
	return nil
}

// verifyClientDataOrigin checks client data's origin against the
// Challenge's origin exactly (no scheme/port relaxation).
func verifyClientDataOrigin(c *CollectedClientData, origin string) error {
	if c.Origin != origin {
		return newErr(KindInvalidOrigin, "client data origin %q does not match expected origin %q", c.Origin, origin)
	}
	return nil
}

// verifyTokenBinding accepts any Token Binding state the client reports;
// wax has no transport-layer visibility to validate it against, so this
// is a deliberate no-op kept as a named step so a future caller that does
// have that visibility has somewhere to plug in.
func verifyTokenBinding(c *CollectedClientData) error {
	return nil
}
