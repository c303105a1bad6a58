// Package database archives finished games. Two backends exist: Postgres for
// a shared server and an embedded Badger store for single-node deployments.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrGameNotFound = errors.New("database: game not found")

// GameRecord is the archived summary of one finished game.
type GameRecord struct {
	ID         uuid.UUID       `json:"id"`
	RoomCode   string          `json:"roomCode"`
	White      string          `json:"white"`
	Black      string          `json:"black"`
	Winner     string          `json:"winner"`
	Reason     string          `json:"reason"` // king_captured, resign or abandoned
	Turns      int             `json:"turns"`
	Actions    int             `json:"actions"`
	FinalFEN   string          `json:"finalFen"`
	FinalState json.RawMessage `json:"finalState"` // engine.BoardState at the end
	StartedAt  time.Time       `json:"startedAt"`
	EndedAt    time.Time       `json:"endedAt"`
}

// Archive stores finished games.
type Archive interface {
	StoreGame(ctx context.Context, rec GameRecord) error
	GetGame(ctx context.Context, id uuid.UUID) (*GameRecord, error)
	RecentGames(ctx context.Context, limit int) ([]GameRecord, error)
	Close() error
}

// Backends accepted by Open.
const (
	BackendNone     = "none"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Open returns the archive for backend. BackendNone yields a nil Archive.
func Open(ctx context.Context, backend, databaseURL, badgerDir string) (Archive, error) {
	switch backend {
	case BackendNone, "":
		return nil, nil
	case BackendPostgres:
		p, err := ConnectPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendBadger:
		b, err := OpenBadger(badgerDir)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown archive backend %q", backend)
}
