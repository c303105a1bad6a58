package models

// GameAction is a client command envelope as received over the WebSocket.
type GameAction struct {
	ActionType string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// Action types accepted from clients.
const (
	ActionPlaceRift   = "place_rift"
	ActionRandomRifts = "random_rifts"
	ActionClearRifts  = "clear_rifts"
	ActionStartGame   = "start_game"
	ActionMove        = "move"
	ActionRoll        = "roll"
	ActionChoice      = "choice"
	ActionPass        = "pass"
	ActionResign      = "resign"
	ActionNewGame     = "new_game"
	ActionSync        = "sync"
)

// Int reads a numeric payload field. JSON numbers decode as float64; only
// integral values are accepted.
func (a GameAction) Int(key string) (int, bool) {
	v, ok := a.Payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

// Text reads a string payload field.
func (a GameAction) Text(key string) (string, bool) {
	s, ok := a.Payload[key].(string)
	return s, ok
}

// Bool reads a boolean payload field.
func (a GameAction) Bool(key string) (bool, bool) {
	b, ok := a.Payload[key].(bool)
	return b, ok
}
