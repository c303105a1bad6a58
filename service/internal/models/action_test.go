package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameActionPayloadAccessors(t *testing.T) {
	var a GameAction
	raw := `{"type":"choice","payload":{"index":2,"half":1.5,"square":"e4","accept":true}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	assert.Equal(t, ActionChoice, a.ActionType)

	n, ok := a.Int("index")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = a.Int("half")
	assert.False(t, ok, "fractional numbers are not indexes")

	_, ok = a.Int("missing")
	assert.False(t, ok)

	s, ok := a.Text("square")
	assert.True(t, ok)
	assert.Equal(t, "e4", s)

	_, ok = a.Text("index")
	assert.False(t, ok)

	b, ok := a.Bool("accept")
	assert.True(t, ok)
	assert.True(t, b)
}

func TestPlayerName(t *testing.T) {
	var nilPlayer *Player
	assert.Equal(t, "anonymous", nilPlayer.Name())
	assert.Equal(t, "anonymous", (&Player{}).Name())
	assert.Equal(t, "ada", (&Player{User: &User{Username: "ada"}}).Name())
}
