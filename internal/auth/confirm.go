package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tempvox/tempvox/internal/platform"
)

// Purpose names the single action a confirmation token is good for. A token
// minted for one purpose never validates for another.
type Purpose string

const (
	// PurposeClaim confirms an ownership transfer.
	PurposeClaim Purpose = "claim"
	// PurposeDelete confirms an explicit room deletion by its owner.
	PurposeDelete Purpose = "delete"
	// PurposeChallenge is the time-boxed secret prompt for a gated room.
	PurposeChallenge Purpose = "challenge"
)

// ErrExpired is returned for a token past its expiry; the initiator has to
// start the interaction over.
var ErrExpired = errors.New("auth: confirmation expired")

// ConfirmClaims binds a token to one purpose, one channel, and one user.
type ConfirmClaims struct {
	Purpose Purpose            `json:"purpose"`
	Channel platform.ChannelID `json:"channel"`
	User    platform.UserID    `json:"user"`
	jwt.RegisteredClaims
}

// Confirmer mints and validates the short-lived tokens behind interactive
// confirmations. Expiry is carried in the token itself; nothing schedules
// background work for it.
type Confirmer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewConfirmer builds a confirmer signing with the given secret.
func NewConfirmer(secret []byte, issuer string, ttl time.Duration) *Confirmer {
	return &Confirmer{secret: secret, issuer: issuer, ttl: ttl}
}

// Mint creates a token confirming purpose for user on channel.
func (c *Confirmer) Mint(purpose Purpose, channel platform.ChannelID, user platform.UserID) (string, error) {
	now := time.Now()
	claims := ConfirmClaims{
		Purpose: purpose,
		Channel: channel,
		User:    user,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign confirmation: %w", err)
	}
	return signed, nil
}

// Validate checks signature, expiry, and that the token was minted for
// exactly this purpose, channel, and user.
func (c *Confirmer) Validate(tokenString string, purpose Purpose, channel platform.ChannelID, user platform.UserID) error {
	token, err := jwt.ParseWithClaims(tokenString, &ConfirmClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("parse confirmation: %w", err)
	}

	claims, ok := token.Claims.(*ConfirmClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid confirmation claims")
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return fmt.Errorf("invalid confirmation issuer")
	}
	if claims.Purpose != purpose || claims.Channel != channel || claims.User != user {
		return fmt.Errorf("confirmation does not match the requested action")
	}
	return nil
}
