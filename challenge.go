package wax

import (
	"crypto/rand"
	"time"
)

// AllowedCredential pairs a credential identifier with the public key the
// relying party stored for it at registration time, so the authentication
// ceremony can verify a signature without consulting an external
// credential database of its own.
type AllowedCredential struct {
	CredentialID []byte
	PublicKey    COSEKey
}

// TokenBindingState describes the expected Token Binding state for a
// ceremony. The orchestrator accepts any state presented by the client;
// this field is reserved for a caller that wants to enforce it externally.
type TokenBindingState struct {
	Status string
	ID     string
}

// Challenge is the immutable record a caller creates before starting a
// ceremony and echoes back when finishing it; the Finish* functions take it
// by pointer and never modify it. It carries the
// server-chosen nonce, every policy decision the orchestrator consults,
// and, for authentication, the credentials the assertion is allowed to
// identify.
type Challenge struct {
	Bytes                    [32]byte
	Origin                   string
	RPID                     string
	UserVerifiedRequired     bool
	TrustedAttestationTypes  []AttestationType
	VerifyTrustRoot          bool
	AllowCredentials         []AllowedCredential
	TokenBindingStatus       *TokenBindingState
	Exp                      *time.Time
}

// Option adjusts a Challenge during construction. Options are applied in
// order after defaults are resolved from Config, so a later option always
// wins over an earlier one and over the Config-derived default.
type Option func(*Challenge) error

// WithOrigin overrides the origin resolved from Config.
func WithOrigin(origin string) Option {
	return func(c *Challenge) error {
		c.Origin = origin
		return nil
	}
}

// WithRPID overrides the relying-party ID resolved from Config/Origin.
func WithRPID(rpID string) Option {
	return func(c *Challenge) error {
		c.RPID = rpID
		return nil
	}
}

// WithUserVerifiedRequired sets the user-verification policy.
func WithUserVerifiedRequired(required bool) Option {
	return func(c *Challenge) error {
		c.UserVerifiedRequired = required
		return nil
	}
}

// WithTrustedAttestationTypes restricts which attestation types this
// ceremony will accept.
func WithTrustedAttestationTypes(types ...AttestationType) Option {
	return func(c *Challenge) error {
		c.TrustedAttestationTypes = types
		return nil
	}
}

// WithVerifyTrustRoot toggles trust-anchor verification for packed and
// fido-u2f attestation. android-safetynet always verifies against its
// fixed root regardless of this setting; tpm is never verified.
func WithVerifyTrustRoot(verify bool) Option {
	return func(c *Challenge) error {
		c.VerifyTrustRoot = verify
		return nil
	}
}

// WithTokenBindingStatus records the expected token-binding state.
func WithTokenBindingStatus(status, id string) Option {
	return func(c *Challenge) error {
		c.TokenBindingStatus = &TokenBindingState{Status: status, ID: id}
		return nil
	}
}

// WithExpiry records an absolute expiry the orchestrator itself does not
// enforce; callers that care about it should check Challenge.Exp before
// calling Finish*.
func WithExpiry(exp time.Time) Option {
	return func(c *Challenge) error {
		c.Exp = &exp
		return nil
	}
}

func generateChallengeBytes() ([32]byte, error) {
	var b [32]byte
	n, err := rand.Read(b[:])
	if err != nil {
		return b, wrapErr(KindRandomSourceFailure, err, "error reading random bytes for challenge")
	}
	if n != len(b) {
		return b, newErr(KindRandomSourceFailure, "read %d random bytes, needed %d", n, len(b))
	}
	return b, nil
}

func resolveBaseChallenge(cfg *Config) (*Challenge, error) {
	origin := defaultOrigin(cfg)
	ch := &Challenge{
		Origin:                  origin,
		UserVerifiedRequired:    defaultUserVerifiedRequired(cfg),
		TrustedAttestationTypes: defaultTrustedAttestationTypes(cfg),
		VerifyTrustRoot:         defaultVerifyTrustRoot(cfg),
	}
	return ch, nil
}

func finalizeChallenge(ch *Challenge, cfg *Config) error {
	if ch.Origin == "" {
		return newErr(KindInvalidOrigin, "origin is required")
	}
	if err := validOrigin(ch.Origin); err != nil {
		return err
	}
	if ch.RPID == "" {
		rpID, err := defaultRPID(cfg, ch.Origin)
		if err != nil {
			return err
		}
		ch.RPID = rpID
	}
	b, err := generateChallengeBytes()
	if err != nil {
		return err
	}
	ch.Bytes = b
	if ch.Exp == nil {
		if timeout := defaultTimeout(cfg); timeout > 0 {
			exp := time.Now().Add(timeout)
			ch.Exp = &exp
		}
	}
	return nil
}

// NewRegistrationChallenge creates a Challenge for the registration
// ceremony. AllowCredentials is always empty for registration.
func NewRegistrationChallenge(cfg *Config, opts ...Option) (*Challenge, error) {
	ch, err := resolveBaseChallenge(cfg)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(ch); err != nil {
			return nil, err
		}
	}
	if err := finalizeChallenge(ch, cfg); err != nil {
		return nil, err
	}
	return ch, nil
}

// NewAuthenticationChallenge creates a Challenge for the authentication
// ceremony, scoped to the provided set of allowed credentials.
func NewAuthenticationChallenge(cfg *Config, allowCredentials []AllowedCredential, opts ...Option) (*Challenge, error) {
	ch, err := resolveBaseChallenge(cfg)
	if err != nil {
		return nil, err
	}
	ch.AllowCredentials = allowCredentials
	for _, opt := range opts {
		if err := opt(ch); err != nil {
			return nil, err
		}
	}
	if err := finalizeChallenge(ch, cfg); err != nil {
		return nil, err
	}
	return ch, nil
}

// findAllowedCredential looks up a credential ID among a Challenge's
// allow-list, returning incorrect_credential_id_for_user when absent (or
// when the allow-list is non-empty and the ID can't be found in it; an
// empty allow-list on a registration Challenge always misses).
func (c *Challenge) findAllowedCredential(credentialID []byte) (*AllowedCredential, error) {
	for i := range c.AllowCredentials {
		if bytesEqual(c.AllowCredentials[i].CredentialID, credentialID) {
			return &c.AllowCredentials[i], nil
		}
	}
	return nil, ErrIncorrectCredentialID
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
