package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential reports a credential that failed to decode, carries no
// expiry, or is already expired.
var ErrInvalidCredential = errors.New("invalid credential")

// Credential is a decoded access credential.
//
// The credential is a JWT issued by the application's token server. Signature
// verification is the signaling provider's job, not ours: we only decode the
// payload to learn the expiry and the identity the credential grants. Treat
// the value as opaque everywhere else.
type Credential struct {
	Value     string
	Identity  string
	ExpiresAt time.Time
}

// Valid reports whether the credential is usable at the given instant.
func (c Credential) Valid(now time.Time) bool {
	return c.Value != "" && now.Before(c.ExpiresAt)
}

// Decode extracts the expiry and identity claims without verifying the
// signature. The identity lives under grants.identity in provider access
// tokens; a top-level identity claim is accepted as fallback.
func Decode(value string) (Credential, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(value, claims); err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Credential{}, fmt.Errorf("%w: missing exp claim", ErrInvalidCredential)
	}

	return Credential{
		Value:     value,
		Identity:  identityClaim(claims),
		ExpiresAt: exp.Time,
	}, nil
}

func identityClaim(claims jwt.MapClaims) string {
	if grants, ok := claims["grants"].(map[string]any); ok {
		if id, ok := grants["identity"].(string); ok && id != "" {
			return id
		}
	}
	if id, ok := claims["identity"].(string); ok {
		return id
	}
	return ""
}
