package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every way an Authorization header can fail:
// missing, malformed, bad signature or no subject claim.
var ErrInvalidToken = errors.New("invalid bearer token")

// TokenVerifier extracts the caller's IBAN from a signed bearer token.
// The IBAN lives in the subject claim; clients never pass it explicitly.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// ExtractIBAN validates the Authorization header and returns the
// token's subject.
func (v *TokenVerifier) ExtractIBAN(authorization string) (string, error) {
	raw, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: missing bearer prefix", ErrInvalidToken)
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: no subject claim", ErrInvalidToken)
	}
	return subject, nil
}
