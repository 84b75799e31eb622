package wax

import "sync"

// Identifiers for extensions wax knows the name of. wax does not
// interpret extension semantics itself; these constants exist so
// callers that do can reference the identifier rather than a string
// literal.
const (
	ExtensionAppID = "appid"
)

// ClientExtensionInputs carries extension input values a caller wants
// echoed to the authenticator during a ceremony.
type ClientExtensionInputs map[string]interface{}

// ClientExtensionOutputs carries the extension output values the client
// returned, separate from whatever the authenticator itself encoded in
// authenticatorData's extensions block.
type ClientExtensionOutputs map[string]interface{}

// ExtensionValidator checks an extension's output value against the
// input value the ceremony requested. It is never invoked automatically:
// wax has no opinion on extension semantics, since extensions are an
// open-ended mechanism by design. A caller that wants a particular
// extension validated registers one and calls ValidateExtension itself
// after Finish* returns.
type ExtensionValidator func(input, output interface{}) error

var (
	extensionValidatorsMu sync.RWMutex
	extensionValidators   = map[string]ExtensionValidator{}
)

// RegisterExtensionValidator installs a validator for the named
// extension, replacing any validator previously registered under that
// name. This is the one place wax accepts a caller-supplied plugin point
// outside of Option and Config: the set of attestation statement formats
// is fixed, but the set of extensions is not.
func RegisterExtensionValidator(name string, v ExtensionValidator) {
	extensionValidatorsMu.Lock()
	defer extensionValidatorsMu.Unlock()
	extensionValidators[name] = v
}

// ValidateExtension runs the validator registered for name, if any. It
// reports ok=false when no validator is registered, which is not itself
// an error: an unvalidated extension output is simply passed through.
func ValidateExtension(name string, input, output interface{}) (err error, ok bool) {
	extensionValidatorsMu.RLock()
	v, ok := extensionValidators[name]
	extensionValidatorsMu.RUnlock()
	if !ok {
		return nil, false
	}
	return v(input, output), true
}

// VerifyAppID is a validator for the appid extension (§10.1 of the
// extension registry), provided because the appid extension is common
// enough to need a ready-made validator; callers register it themselves
// via RegisterExtensionValidator("appid", wax.VerifyAppID) if they want
// it applied.
func VerifyAppID(_, output interface{}) error {
	if _, ok := output.(bool); ok {
		return nil
	}
	return newErr(KindInvalidClientDataJSON, "appid extension output value must be a bool")
}

// effectiveRPID resolves the relying party ID a signature is expected to
// be bound to, accounting for the appid extension: when an authenticator
// reports it used the legacy AppID in place of the RP ID, and the
// ceremony's extension inputs carry an AppID string, that AppID replaces
// RPID for hash comparison purposes.
func effectiveRPID(rpID string, extensionInputs ClientExtensionInputs, extensionOutputs ClientExtensionOutputs) string {
	usedAppID, ok := extensionOutputs[ExtensionAppID].(bool)
	if !ok || !usedAppID {
		return rpID
	}
	if appID, ok := extensionInputs[ExtensionAppID].(string); ok {
		return appID
	}
	return rpID
}
