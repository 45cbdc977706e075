package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of a conversation token.
const DefaultTokenTTL = 30 * time.Minute

const tokenIssuer = "profilebot-relay"

// ConversationClaims bind a token to one conversation.
type ConversationClaims struct {
	ConversationID string `json:"conv"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 conversation tokens.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenIssuer creates an issuer. A non-positive ttl uses DefaultTokenTTL.
func NewTokenIssuer(key string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{key: []byte(key), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue returns a token for conversationID.
func (ti *TokenIssuer) Issue(conversationID string) (string, error) {
	now := ti.now()
	claims := ConversationClaims{
		ConversationID: conversationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a token and returns the conversation it is bound to.
func (ti *TokenIssuer) Verify(tokenString string) (string, error) {
	var claims ConversationClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return ti.key, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(ti.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ConversationID == "" {
		return "", errors.New("token is not bound to a conversation")
	}
	return claims.ConversationID, nil
}
