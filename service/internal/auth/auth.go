// Package auth issues the seat tokens that let a player reclaim their seat
// after a disconnect, and hashes private room passcodes.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	engine "github.com/jason-s-yu/rifts/engine"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("auth: invalid seat token")

const issuer = "rifts"

// SeatClaims binds a player to one seat of one room.
type SeatClaims struct {
	Room  string `json:"room"`
	Color string `json:"color"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// PlayerID returns the subject as a UUID.
func (c *SeatClaims) PlayerID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// SeatColor returns the seat as an engine color.
func (c *SeatClaims) SeatColor() (engine.Color, error) {
	col, ok := engine.ParseColor(c.Color)
	if !ok {
		return engine.NoColor, fmt.Errorf("%w: color %q", ErrInvalidToken, c.Color)
	}
	return col, nil
}

// Issuer signs and verifies seat tokens with HS256.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an issuer. An empty secret is replaced by a random one,
// so tokens only survive as long as the process.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
	}
	return &Issuer{secret: key, ttl: ttl}, nil
}

// Issue signs a token for a seat.
func (i *Issuer) Issue(playerID uuid.UUID, room string, color engine.Color, name string) (string, error) {
	now := time.Now()
	claims := SeatClaims{
		Room:  room,
		Color: color.String(),
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   playerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign seat token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims.
func (i *Issuer) Parse(tokenString string) (*SeatClaims, error) {
	claims := &SeatClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := claims.PlayerID(); err != nil {
		return nil, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// HashPasscode hashes a private room passcode.
func HashPasscode(passcode string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
}

// CheckPasscode reports whether passcode matches hash.
func CheckPasscode(hash []byte, passcode string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(passcode)) == nil
}
