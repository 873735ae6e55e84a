package utils

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// SessionClaim is the payload of a session token issued by the
// authentication provider. Subject carries the provider's user id.
type SessionClaim struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.StandardClaims
}

func JwtGenerate(secret []byte, userId, name, email string, lifespan time.Duration) (string, error) {
	if userId == "" {
		return "", fmt.Errorf("user id is required")
	}
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &SessionClaim{
		Name:  name,
		Email: email,
		StandardClaims: jwt.StandardClaims{
			Subject:   userId,
			ExpiresAt: now.Add(lifespan).Unix(),
			IssuedAt:  now.Unix(),
		},
	})

	token, err := t.SignedString(secret)
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(secret []byte, token string) (*SessionClaim, error) {
	parsed, err := jwt.ParseWithClaims(token, &SessionClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claim, ok := parsed.Claims.(*SessionClaim)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	if claim.Subject == "" {
		return nil, fmt.Errorf("session token has no subject")
	}
	return claim, nil
}
