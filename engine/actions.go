package engine

import "fmt"

// Move is a from/to pair.
type Move struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

func (m Move) String() string { return m.From.Name() + m.To.Name() }

// RequestMove validates and commits a move for the current player. On error
// the state is unchanged.
func (g *GameState) RequestMove(from, to Square) error {
	if g.Phase == PhaseEnded {
		return fmt.Errorf("move: %w", ErrGameOver)
	}
	if g.Phase != PhasePlaying {
		return fmt.Errorf("move: %w", ErrWrongPhase)
	}
	switch g.Pending.Type {
	case PendingNone:
	case PendingExtraMove:
		if !from.Valid() || g.Board[from] != g.Pending.Piece {
			return fmt.Errorf("move from %s: %w", from.Name(), ErrExtraMoveRequired)
		}
	default:
		return fmt.Errorf("move while %s pending: %w", g.Pending.Type, ErrPending)
	}
	if err := g.ValidateMove(from, to); err != nil {
		return err
	}
	if g.kingSecondMoveAvailable() && g.Pieces[g.Board[from]].Type != King {
		return fmt.Errorf("move %s: %w", from.Name(), ErrKingMustMove)
	}
	return g.commitMove(from, to)
}

// commitMove applies a validated move, then either suspends on a rift or
// concludes the action.
func (g *GameState) commitMove(from, to Square) error {
	id := g.Board[from]
	p := &g.Pieces[id]
	c := p.Color

	captured := NoPiece
	if g.Board[to] != NoPiece {
		var err error
		if captured, err = g.capturePiece(to); err != nil {
			return err
		}
	}
	g.Board[to] = id
	g.Board[from] = NoPiece
	g.Pending = PendingAction{Piece: NoPiece, Rift: NoSquare}

	p.HasMoved = true
	g.Turn.PlayerHasMoved[c] = true
	if p.Type == King {
		if g.Turn.MovesThisTurn == 0 {
			g.Turn.KingMovedFirst = true
		}
		g.Turn.KingMovedThisTurn[c]++
	}
	g.Turn.MovesThisTurn++
	g.LastMove = LastMoveInfo{Piece: id, From: from, To: to, Captured: captured}

	if captured != NoPiece && g.Pieces[captured].Type == King {
		g.endGame(c)
		return nil
	}

	if i := g.riftIndex(to); i >= 0 && !g.Rifts[i].Activated && !g.Turn.RiftActivatedThisTurn {
		g.Rifts[i].Activated = true
		g.Turn.RiftActivatedThisTurn = true
		g.LastMove.Rift = true
		g.Pending = PendingAction{Type: PendingRoll, Player: c, Piece: id, Rift: to}
		return nil
	}
	g.concludeAction()
	return nil
}

// doubleMoveActive reports whether Conqueror's Tale applies to c this turn.
func (g *GameState) doubleMoveActive(c Color) bool {
	ka := g.KingAbilities[c]
	return ka.DoubleMove && g.TurnNumber > ka.GrantedTurn
}

// kingSecondMoveAvailable reports whether the current player opened the turn
// with a king move that may be followed by one more.
func (g *GameState) kingSecondMoveAvailable() bool {
	c := g.Turn.Current
	return g.doubleMoveActive(c) && g.Turn.KingMovedFirst && g.Turn.KingMovedThisTurn[c] == 1
}

// concludeAction advances the turn unless something keeps it open: a pending
// step or an available second king move.
func (g *GameState) concludeAction() {
	if g.Phase != PhasePlaying || g.Pending.Type != PendingNone {
		return
	}
	if g.kingSecondMoveAvailable() {
		if ksq := g.kingSquare(g.Turn.Current); ksq != NoSquare && g.hasAnyMove(ksq) {
			return
		}
	}
	g.advanceTurn()
}

// advanceTurn hands the turn to the opponent, consuming a scheduled Eerie
// Fog skip if that side has one.
func (g *GameState) advanceTurn() {
	next := g.Turn.Current.Opponent()
	g.TurnNumber++
	g.Turn.LastSkipped = NoColor
	if g.Turn.PendingEerieFogSkip == next {
		g.Turn.PendingEerieFogSkip = NoColor
		g.Turn.LastSkipped = next
		g.TurnNumber++
		next = next.Opponent()
	}
	g.Turn.Current = next
	g.Turn.RiftActivatedThisTurn = false
	g.Turn.DiceRolledThisTurn = false
	g.Turn.KingMovedThisTurn = [2]uint8{}
	g.Turn.KingMovedFirst = false
	g.Turn.MovesThisTurn = 0
}

// PassTurn ends the turn without moving. It is allowed after a first king
// move under Conqueror's Tale, or when the current player has no movable piece.
func (g *GameState) PassTurn() error {
	if g.Phase == PhaseEnded {
		return fmt.Errorf("pass: %w", ErrGameOver)
	}
	if g.Phase != PhasePlaying {
		return fmt.Errorf("pass: %w", ErrWrongPhase)
	}
	if g.Pending.Type != PendingNone {
		return fmt.Errorf("pass while %s pending: %w", g.Pending.Type, ErrPending)
	}
	if !g.kingSecondMoveAvailable() && g.sideHasMove(g.Turn.Current) {
		return fmt.Errorf("pass: %w", ErrCannotPass)
	}
	g.advanceTurn()
	return nil
}
