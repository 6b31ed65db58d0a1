// Package auth issues and validates the bearer tokens used by the API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "crop-notifier"
	// linkAudience marks short-lived codes that only the chat bot accepts.
	linkAudience = "telegram-link"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingKey   = errors.New("jwt secret is not configured")
)

type TokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

func (i *TokenIssuer) Issue(username string, expiresIn time.Duration) (string, time.Time, error) {
	return i.issue(username, expiresIn, nil)
}

// IssueLinkCode signs a code the user sends to the bot as "/link <code>".
// Link codes are not valid API tokens.
func (i *TokenIssuer) IssueLinkCode(username string, expiresIn time.Duration) (string, time.Time, error) {
	return i.issue(username, expiresIn, jwt.ClaimStrings{linkAudience})
}

func (i *TokenIssuer) issue(username string, expiresIn time.Duration, audience jwt.ClaimStrings) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, ErrMissingKey
	}

	now := i.now()
	expiresAt := now.Add(expiresIn)
	claims := TokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Audience:  audience,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (i *TokenIssuer) Validate(tokenString string) (*TokenClaims, error) {
	claims, err := i.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if len(claims.Audience) > 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateLinkCode accepts only codes from IssueLinkCode.
func (i *TokenIssuer) ValidateLinkCode(code string) (*TokenClaims, error) {
	return i.parse(code, jwt.WithAudience(linkAudience))
}

func (i *TokenIssuer) parse(tokenString string, opts ...jwt.ParserOption) (*TokenClaims, error) {
	if len(i.secret) == 0 {
		return nil, ErrMissingKey
	}

	opts = append(opts, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
