package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/domain"
)

var (
	// ErrMalformed is returned when a credential is not a validly signed,
	// well-formed token of the requested class.
	ErrMalformed = errors.New("malformed credential")
	// ErrSigning is returned when no signing material is available for a class.
	ErrSigning = errors.New("credential signing failed")
)

// tokenClaims is the JWT payload. Expiry lives in exp_us so it keeps
// microsecond resolution; the registered exp claim is not used.
type tokenClaims struct {
	UserID    string                 `json:"user_id"`
	Username  string                 `json:"username"`
	Class     domain.CredentialClass `json:"cls"`
	ExpiresUS int64                  `json:"exp_us"`
	jwt.RegisteredClaims
}

// Codec encodes and decodes credentials. Secrets are looked up per call from
// the injected configuration.
type Codec struct {
	cfg config.AuthConfig
}

// NewCodec builds a codec over the given auth configuration.
func NewCodec(cfg config.AuthConfig) *Codec {
	return &Codec{cfg: cfg}
}

func (c *Codec) secret(class domain.CredentialClass) ([]byte, error) {
	var secret string
	switch class {
	case domain.CredentialAccess:
		secret = c.cfg.AccessSecret
	case domain.CredentialRefresh:
		secret = c.cfg.RefreshSecret
	default:
		return nil, fmt.Errorf("%w: unknown credential class %q", ErrSigning, class)
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: no secret for %s credentials", ErrSigning, class)
	}
	return []byte(secret), nil
}

// Encode signs claims for the given class.
func (c *Codec) Encode(class domain.CredentialClass, subjectID, subjectName string, expiresAt time.Time) (string, error) {
	key, err := c.secret(class)
	if err != nil {
		return "", err
	}

	claims := tokenClaims{
		UserID:    subjectID,
		Username:  subjectName,
		Class:     class,
		ExpiresUS: expiresAt.UnixMicro(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subjectID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// Decode verifies the signature and class of a credential and returns its
// claims. Expiry is not checked here.
func (c *Codec) Decode(class domain.CredentialClass, tokenStr string) (domain.Claims, error) {
	key, err := c.secret(class)
	if err != nil {
		return domain.Claims{}, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &tokenClaims{}, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return domain.Claims{}, fmt.Errorf("%w: invalid token claims", ErrMalformed)
	}
	if claims.Class != class {
		return domain.Claims{}, fmt.Errorf("%w: expected %s credential", ErrMalformed, class)
	}
	if claims.UserID == "" || claims.ExpiresUS == 0 {
		return domain.Claims{}, fmt.Errorf("%w: incomplete claims", ErrMalformed)
	}

	return domain.Claims{
		SubjectID:   claims.UserID,
		SubjectName: claims.Username,
		ExpiresAt:   time.UnixMicro(claims.ExpiresUS).UTC(),
	}, nil
}
