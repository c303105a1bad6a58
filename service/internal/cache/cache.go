// Package cache keeps live room state in Redis: a snapshot of every room's
// engine state, and the ordered action stream of every game.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/rifts/engine"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNoClient         = errors.New("cache: redis client not configured")
	ErrSnapshotNotFound = errors.New("cache: room snapshot not found")
)

const keyPrefix = "rifts:"

// GameActionRecord is one entry of a game's action stream.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"gameId"`
	RoomCode      string                 `json:"roomCode"`
	ActionIndex   int                    `json:"actionIndex"`
	ActorUserID   uuid.UUID              `json:"actorUserId"` // Nil for game-generated events.
	ActionType    string                 `json:"actionType"`
	ActionPayload map[string]interface{} `json:"actionPayload"`
	Timestamp     int64                  `json:"timestamp"` // unix millis
}

// RoomSnapshot is the cached state of a room, enough to rebuild its game
// after a restart.
type RoomSnapshot struct {
	Code     string           `json:"code"`
	GameID   uuid.UUID        `json:"gameId"`
	Seats    [2]string        `json:"seats"`              // player names indexed by engine.Color
	PassHash []byte           `json:"passHash,omitempty"` // private rooms only
	Engine   engine.GameState `json:"engine"`
	SavedAt  int64            `json:"savedAt"`
}

// Store wraps a Redis client. A nil *Store is valid and reports ErrNoClient
// from every call.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to the Redis server at url (redis://...). Keys expire after ttl.
func New(url string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewFromClient(redis.NewClient(opts), ttl), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) client() (*redis.Client, error) {
	if s == nil || s.rdb == nil {
		return nil, ErrNoClient
	}
	return s.rdb, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	rdb, err := s.client()
	if err != nil {
		return nil
	}
	return rdb.Close()
}

func actionsKey(gameID uuid.UUID) string { return keyPrefix + "actions:" + gameID.String() }
func roomKey(code string) string         { return keyPrefix + "room:" + code }

// PublishGameAction appends rec to its game's action stream.
func (s *Store) PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	values, err := rec.values()
	if err != nil {
		return err
	}
	key := actionsKey(rec.GameID)
	pipe := rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: values})
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish action %d of game %s: %w", rec.ActionIndex, rec.GameID, err)
	}
	return nil
}

// GameActions returns a game's action stream in order.
func (s *Store) GameActions(ctx context.Context, gameID uuid.UUID) ([]GameActionRecord, error) {
	rdb, err := s.client()
	if err != nil {
		return nil, err
	}
	msgs, err := rdb.XRange(ctx, actionsKey(gameID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read actions of game %s: %w", gameID, err)
	}
	out := make([]GameActionRecord, 0, len(msgs))
	for _, m := range msgs {
		rec, err := decodeAction(m.Values)
		if err != nil {
			return nil, fmt.Errorf("stream entry %s: %w", m.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveSnapshot stores a room snapshot, replacing any previous one.
func (s *Store) SaveSnapshot(ctx context.Context, snap RoomSnapshot) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot of room %s: %w", snap.Code, err)
	}
	return rdb.Set(ctx, roomKey(snap.Code), data, s.ttl).Err()
}

// LoadSnapshot fetches the snapshot of a room.
func (s *Store) LoadSnapshot(ctx context.Context, code string) (*RoomSnapshot, error) {
	rdb, err := s.client()
	if err != nil {
		return nil, err
	}
	data, err := rdb.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot of room %s: %w", code, err)
	}
	var snap RoomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot of room %s: %w", code, err)
	}
	return &snap, nil
}

// DeleteSnapshot forgets a room.
func (s *Store) DeleteSnapshot(ctx context.Context, code string) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	return rdb.Del(ctx, roomKey(code)).Err()
}

// values flattens the record into stream fields. The payload is stored as JSON.
func (rec GameActionRecord) values() (map[string]interface{}, error) {
	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return nil, fmt.Errorf("encode payload of %s: %w", rec.ActionType, err)
	}
	return map[string]interface{}{
		"game":    rec.GameID.String(),
		"room":    rec.RoomCode,
		"index":   rec.ActionIndex,
		"actor":   rec.ActorUserID.String(),
		"type":    rec.ActionType,
		"payload": string(payload),
		"ts":      rec.Timestamp,
	}, nil
}

// decodeAction parses stream fields as read back from Redis, where every
// value is a string.
func decodeAction(v map[string]interface{}) (GameActionRecord, error) {
	var rec GameActionRecord
	str := func(k string) string {
		s, _ := v[k].(string)
		return s
	}
	var err error
	if rec.GameID, err = uuid.Parse(str("game")); err != nil {
		return rec, fmt.Errorf("game id: %w", err)
	}
	if rec.ActorUserID, err = uuid.Parse(str("actor")); err != nil {
		return rec, fmt.Errorf("actor id: %w", err)
	}
	if rec.ActionIndex, err = strconv.Atoi(str("index")); err != nil {
		return rec, fmt.Errorf("index: %w", err)
	}
	if rec.Timestamp, err = strconv.ParseInt(str("ts"), 10, 64); err != nil {
		return rec, fmt.Errorf("timestamp: %w", err)
	}
	rec.RoomCode = str("room")
	rec.ActionType = str("type")
	if p := str("payload"); p != "" {
		if err := json.Unmarshal([]byte(p), &rec.ActionPayload); err != nil {
			return rec, fmt.Errorf("payload: %w", err)
		}
	}
	return rec, nil
}
