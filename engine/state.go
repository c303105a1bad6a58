package engine

// PieceView is the public view of a piece on the board or in a pool.
type PieceView struct {
	ID            PieceID `json:"id"`
	Type          string  `json:"type"`
	Color         string  `json:"color"`
	Square        string  `json:"square,omitempty"`
	Row           int     `json:"row"`
	Col           int     `json:"col"`
	HasMoved      bool    `json:"hasMoved"`
	Frozen        bool    `json:"frozen"`
	FairyFountain bool    `json:"fairyFountain,omitempty"`
}

// RiftView is the public view of a rift.
type RiftView struct {
	Square    string `json:"square"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Activated bool   `json:"activated"`
}

// PendingView describes what the engine is waiting for.
type PendingView struct {
	Type    string   `json:"type"`
	Player  string   `json:"player"`
	Rift    string   `json:"rift,omitempty"`
	Effect  string   `json:"effect,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
}

// EffectView is the public view of the last rift resolution.
type EffectView struct {
	Roll      int      `json:"roll"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Player    string   `json:"player"`
	Rift      string   `json:"rift"`
	Outcome   string   `json:"outcome"`
	Detail    string   `json:"detail,omitempty"`
	Secondary []int    `json:"secondary,omitempty"`
	Removed   []string `json:"removed,omitempty"`
}

// BoardState is the outbound snapshot consumed by rendering, logging and the
// network relay.
type BoardState struct {
	Phase         string                 `json:"phase"`
	CurrentPlayer string                 `json:"currentPlayer"`
	TurnNumber    int                    `json:"turnNumber"`
	Winner        string                 `json:"winner,omitempty"`
	FieldEffect   string                 `json:"fieldEffect"`
	Pieces        []PieceView            `json:"pieces"`
	Captured      map[string][]PieceView `json:"captured"`
	Rifts         []RiftView             `json:"rifts"`
	KingDouble    map[string]bool        `json:"kingDoubleMove"`
	Pending       *PendingView           `json:"pending,omitempty"`
	LastMove      *Move                  `json:"lastMove,omitempty"`
	LastEffect    *EffectView            `json:"lastEffect,omitempty"`
	Skipped       string                 `json:"skipped,omitempty"`
}

func (g *GameState) pieceView(id PieceID, sq Square) PieceView {
	p := g.Pieces[id]
	v := PieceView{
		ID:            id,
		Type:          p.Type.String(),
		Color:         p.Color.String(),
		Row:           -1,
		Col:           -1,
		HasMoved:      p.HasMoved,
		Frozen:        p.IsFrozen(),
		FairyFountain: p.FairyFountain,
	}
	if sq.Valid() {
		v.Square = sq.Name()
		v.Row = sq.Row()
		v.Col = sq.Col()
	}
	return v
}

// State returns a JSON-serializable snapshot of the game.
func (g *GameState) State() BoardState {
	s := BoardState{
		Phase:         g.Phase.String(),
		CurrentPlayer: g.Turn.Current.String(),
		TurnNumber:    int(g.TurnNumber),
		FieldEffect:   g.Field.String(),
		Captured:      map[string][]PieceView{},
		KingDouble:    map[string]bool{},
	}
	if g.Phase == PhaseEnded {
		s.Winner = g.Winner.String()
	}
	for sq, id := range g.Board {
		if id != NoPiece {
			s.Pieces = append(s.Pieces, g.pieceView(id, Square(sq)))
		}
	}
	for _, c := range [2]Color{White, Black} {
		views := []PieceView{}
		for _, id := range g.Captured[c].Slice() {
			views = append(views, g.pieceView(id, NoSquare))
		}
		s.Captured[c.String()] = views
		s.KingDouble[c.String()] = g.KingAbilities[c].DoubleMove
	}
	for i := 0; i < int(g.RiftCount); i++ {
		r := g.Rifts[i]
		s.Rifts = append(s.Rifts, RiftView{Square: r.Square.Name(), Row: r.Square.Row(), Col: r.Square.Col(), Activated: r.Activated})
	}
	if g.Pending.Type != PendingNone {
		pv := &PendingView{
			Type:    g.Pending.Type.String(),
			Player:  g.Pending.Player.String(),
			Choices: g.LegalChoices(),
		}
		if g.Pending.Rift.Valid() {
			pv.Rift = g.Pending.Rift.Name()
		}
		if g.Pending.Kind != EffectNone {
			pv.Effect = g.Pending.Kind.String()
		}
		s.Pending = pv
	}
	if g.LastMove.Piece != NoPiece {
		s.LastMove = &Move{From: g.LastMove.From, To: g.LastMove.To}
	}
	if g.LastEffect.Kind != EffectNone {
		e := g.LastEffect
		info := e.Kind.Info()
		ev := &EffectView{
			Roll:     int(e.Roll),
			Name:     info.Name,
			Category: info.Category.String(),
			Player:   e.Player.String(),
			Rift:     e.Rift.Name(),
			Outcome:  e.Outcome.String(),
			Detail:   e.Detail,
		}
		for _, v := range e.Secondary {
			if v != 0 {
				ev.Secondary = append(ev.Secondary, int(v))
			}
		}
		for _, id := range e.Removed {
			ev.Removed = append(ev.Removed, g.Pieces[id].Color.String()+" "+g.Pieces[id].Type.String())
		}
		s.LastEffect = ev
	}
	if g.Turn.LastSkipped != NoColor {
		s.Skipped = g.Turn.LastSkipped.String()
	}
	return s
}
