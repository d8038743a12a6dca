// Package auth issues and verifies the signed tokens that identify users, and
// provides the HTTP middleware that turns a bearer credential into the
// current user attached to the request context.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

const (
	issuer        = "github.com/andrewwphillips/libris"
	tokenLifetime = 24 * time.Hour

	usernameClaim = "username"
	userIDClaim   = "jti"
	expiryClaim   = "exp"
	issuerClaim   = "iss"
)

// Identity is the {username, id} pair embedded in a token at login.
type Identity struct {
	Username string
	UserID   string
}

// Authority signs and verifies tokens with a shared HMAC secret.
type Authority struct {
	secret []byte
}

func New(secret string) *Authority {
	return &Authority{secret: []byte(secret)}
}

// Issue signs a token embedding the given identity.
func (a *Authority) Issue(id Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		usernameClaim: id.Username,
		userIDClaim:   id.UserID,
		expiryClaim:   time.Now().Add(tokenLifetime).Unix(),
		issuerClaim:   issuer,
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns the embedded
// identity.  Any failure (bad signature, expired, malformed) is an error.
func (a *Authority) Verify(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, errors.Wrap(err, "verifying token")
	}
	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("unexpected token claims")
	}
	id, _ := claims[userIDClaim].(string)
	if id == "" {
		return Identity{}, errors.New("token has no user id")
	}
	username, _ := claims[usernameClaim].(string)
	return Identity{Username: username, UserID: id}, nil
}
