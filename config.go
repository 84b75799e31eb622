package wax

import (
	"net/url"
	"time"
)

// Config holds process-wide defaults consumed by the challenge generators.
// It is read once per generator call and never mutated by wax itself;
// callers own its lifecycle (typically loaded once at process start from
// whatever configuration plumbing they already have). A zero Config passes
// Valid, and every field except Origin has a fallback applied by the
// generators; with no Origin from Config or WithOrigin, the generators
// return an error.
type Config struct {
	Origin                  string
	RPID                    string // "auto" or empty derives RPID from Origin's host
	UserVerifiedRequired    bool
	TrustedAttestationTypes []AttestationType
	VerifyTrustRoot         *bool // nil means "use the default (true)"
	Timeout                 time.Duration // 0 means "no default expiry"
}

// Valid reports whether c's Origin, when set, is well-formed per the
// scheme/host rule spec of a Challenge: scheme https, or host localhost.
func (c *Config) Valid() error {
	if c == nil || c.Origin == "" {
		return nil
	}
	return validOrigin(c.Origin)
}

func validOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return wrapErr(KindInvalidOrigin, err, "origin %q is not a valid URL", origin)
	}
	if u.Scheme == "https" {
		return nil
	}
	if u.Hostname() == "localhost" {
		return nil
	}
	return newErr(KindInvalidOrigin, "origin %q must use scheme https or host localhost", origin)
}

func defaultTimeout(c *Config) time.Duration {
	if c == nil {
		return 0
	}
	return c.Timeout
}

func defaultTrustedAttestationTypes(c *Config) []AttestationType {
	if c != nil && len(c.TrustedAttestationTypes) > 0 {
		return c.TrustedAttestationTypes
	}
	return []AttestationType{
		AttestationNone,
		AttestationBasic,
		AttestationSelf,
		AttestationAttCA,
		AttestationUncertain,
	}
}

func defaultVerifyTrustRoot(c *Config) bool {
	if c != nil && c.VerifyTrustRoot != nil {
		return *c.VerifyTrustRoot
	}
	return true
}

func defaultUserVerifiedRequired(c *Config) bool {
	if c == nil {
		return false
	}
	return c.UserVerifiedRequired
}

func defaultRPID(c *Config, origin string) (string, error) {
	if c != nil && c.RPID != "" && c.RPID != "auto" {
		return c.RPID, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return "", wrapErr(KindInvalidRPID, err, "cannot derive rp_id from origin %q", origin)
	}
	return u.Hostname(), nil
}

func defaultOrigin(c *Config) string {
	if c == nil {
		return ""
	}
	return c.Origin
}
