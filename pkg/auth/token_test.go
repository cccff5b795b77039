package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/pkg/config"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
)

func signToken(t *testing.T, secret string, claims StaffClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func validClaims(actor uuid.UUID, programs ...uuid.UUID) StaffClaims {
	now := time.Now().UTC()
	return StaffClaims{
		ProgramIDs: programs,
		Role:       enums.ActorRoleStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.String(),
			Issuer:    "idp",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestParseStaffToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "idp"}
	actor := uuid.New()
	program := uuid.New()

	claims, err := ParseStaffToken(cfg, signToken(t, "secret", validClaims(actor, program)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := claims.ActorID()
	if err != nil || got != actor {
		t.Fatalf("unexpected actor %s err=%v", got, err)
	}
	if !claims.CanAccessProgram(program) {
		t.Fatalf("expected access to program")
	}
	if claims.CanAccessProgram(uuid.New()) {
		t.Fatalf("unexpected access to foreign program")
	}
}

func TestParseStaffTokenRejects(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "idp"}
	actor := uuid.New()

	expired := validClaims(actor)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims(actor)
	wrongIssuer.Issuer = "other"

	badRole := validClaims(actor)
	badRole.Role = enums.ActorRole("admin")

	badSubject := validClaims(actor)
	badSubject.Subject = "not-a-uuid"

	noExpiry := validClaims(actor)
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"expired":      signToken(t, "secret", expired),
		"wrong issuer": signToken(t, "secret", wrongIssuer),
		"bad role":     signToken(t, "secret", badRole),
		"bad subject":  signToken(t, "secret", badSubject),
		"no expiry":    signToken(t, "secret", noExpiry),
		"wrong secret": signToken(t, "other-secret", validClaims(actor)),
	}
	for name, token := range cases {
		if _, err := ParseStaffToken(cfg, token); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	if _, err := ParseStaffToken(config.JWTConfig{}, "x"); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestVerifierAudienceAndLeeway(t *testing.T) {
	actor := uuid.New()
	verifier, err := NewVerifier(config.JWTConfig{Secret: "secret", Issuer: "idp", Audience: "visitrewards", Leeway: time.Minute})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	noAudience := validClaims(actor)
	if _, err := verifier.Verify(signToken(t, "secret", noAudience)); err == nil {
		t.Fatal("expected token without audience to be rejected")
	}

	skewed := validClaims(actor)
	skewed.Audience = jwt.ClaimStrings{"visitrewards"}
	skewed.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Second))
	if _, err := verifier.Verify(signToken(t, "secret", skewed)); err != nil {
		t.Fatalf("expected leeway to absorb skew: %v", err)
	}
}

func TestSystemRoleAccessesAnyProgram(t *testing.T) {
	claims := &StaffClaims{Role: enums.ActorRoleSystem}
	if !claims.CanAccessProgram(uuid.New()) {
		t.Fatal("system role should access any program")
	}
	var nilClaims *StaffClaims
	if nilClaims.CanAccessProgram(uuid.New()) {
		t.Fatal("nil claims should not access programs")
	}
}
