// Package models holds the transport-level types shared by the service packages.
package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// User is the display identity of a room occupant. Rooms are anonymous, so a
// user exists only for the lifetime of a connection or seat token.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Role is the part an occupant plays in a room.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Player is a room occupant, seated or spectating.
type Player struct {
	ID        uuid.UUID       `json:"id"`
	User      *User           `json:"user"`
	Role      Role            `json:"role"`
	Conn      *websocket.Conn `json:"-"` // nil while disconnected
	Connected bool            `json:"connected"`
}

// Name returns the username, or a placeholder for a player without one.
func (p *Player) Name() string {
	if p == nil || p.User == nil || p.User.Username == "" {
		return "anonymous"
	}
	return p.User.Username
}
