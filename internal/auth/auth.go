// Package auth validates the three credential kinds accepted by the service.
// Each kind has exactly one header and one claim shape; a token presented on
// a header is only ever checked against that header's validator, never
// decoded by trial and error.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken indicates no credential was presented.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken indicates the credential failed validation.
	ErrInvalidToken = errors.New("invalid token")
)

// Kind identifies one credential flavor.
type Kind string

const (
	// KindUser is an end-user token (WebSocket subscribe, channel publish).
	KindUser Kind = "user"
	// KindAPI is a machine token with elevated scope (group publish).
	KindAPI Kind = "api"
	// KindService is an inter-service token (email delivery).
	KindService Kind = "service"
)

// HeaderFor maps each credential kind to the request header carrying it.
var HeaderFor = map[Kind]string{
	KindUser:    "Authorization",
	KindAPI:     "X-API-Authorization",
	KindService: "X-ISC-API-Authorization",
}

// UserClaims is the end-user token payload.
type UserClaims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	ClientID  string `json:"client_id"`
	jwt.RegisteredClaims
}

// APIClaims is the machine token payload. GroupID restricts which group the
// holder may publish to.
type APIClaims struct {
	GroupID int64    `json:"group_id"`
	Scopes  []string `json:"scopes"`
	jwt.RegisteredClaims
}

// ServiceClaims is the inter-service token payload.
type ServiceClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Validator checks HS256 tokens against a shared secret.
type Validator struct {
	secret []byte
}

// NewValidator creates a validator for the given signing secret.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// StripBearer removes an optional "Bearer " prefix from a header value.
func StripBearer(header string) string {
	return strings.TrimPrefix(header, "Bearer ")
}

// ValidateUser parses and validates an end-user token.
func (v *Validator) ValidateUser(token string) (*UserClaims, error) {
	claims := &UserClaims{}
	if err := v.parse(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateAPI parses and validates a machine token.
func (v *Validator) ValidateAPI(token string) (*APIClaims, error) {
	claims := &APIClaims{}
	if err := v.parse(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateService parses and validates an inter-service token.
func (v *Validator) ValidateService(token string) (*ServiceClaims, error) {
	claims := &ServiceClaims{}
	if err := v.parse(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *Validator) parse(token string, claims jwt.Claims) error {
	if token == "" {
		return ErrMissingToken
	}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return nil
}
