package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/pkg/config"
)

var ErrMissingSecret = errors.New("jwt secret is required")

var signingMethod = jwt.SigningMethodHS256

// Verifier checks staff tokens minted by the identity provider. Build it once
// at startup and share it across requests.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify parses the token and returns claims with a valid role and a uuid
// subject.
func (v *Verifier) Verify(tokenString string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	if _, err := v.parser.ParseWithClaims(tokenString, claims, v.key); err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid role claim %q", claims.Role)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}
	return claims, nil
}

func (v *Verifier) key(token *jwt.Token) (any, error) {
	if token.Method != signingMethod {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return v.secret, nil
}

// ParseStaffToken verifies a single token without keeping a Verifier around.
func ParseStaffToken(cfg config.JWTConfig, tokenString string) (*StaffClaims, error) {
	v, err := NewVerifier(cfg)
	if err != nil {
		return nil, err
	}
	return v.Verify(tokenString)
}
