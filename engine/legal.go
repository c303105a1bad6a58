package engine

// DecisionCtx returns the current decision context for the acting player.
func (g *GameState) DecisionCtx() DecisionContext {
	switch g.Phase {
	case PhaseSetup:
		return CtxSetup
	case PhaseEnded:
		return CtxTerminal
	}
	switch g.Pending.Type {
	case PendingRoll:
		return CtxRoll
	case PendingExtraMove:
		return CtxExtraMove
	case PendingNone:
	default:
		return CtxChoice
	}
	if g.kingSecondMoveAvailable() {
		return CtxKingSecond
	}
	return CtxMove
}

// LegalActions returns every move the current player may submit right now,
// honoring a pending extra move and a king-only second move.
func (g *GameState) LegalActions() []Move {
	var out []Move
	switch g.DecisionCtx() {
	case CtxMove:
		for _, from := range g.ownPieceSquares(g.Turn.Current, true) {
			out = g.appendValid(out, from)
		}
	case CtxExtraMove:
		if from := g.SquareOf(g.Pending.Piece); from != NoSquare {
			out = g.appendValid(out, from)
		}
	case CtxKingSecond:
		if from := g.kingSquare(g.Turn.Current); from != NoSquare {
			out = g.appendValid(out, from)
		}
	}
	return out
}

func (g *GameState) appendValid(out []Move, from Square) []Move {
	for _, to := range g.LegalMoves(from) {
		if g.IsValidMove(from, to) {
			out = append(out, Move{From: from, To: to})
		}
	}
	return out
}

// CanPass reports whether PassTurn would be accepted.
func (g *GameState) CanPass() bool {
	switch g.DecisionCtx() {
	case CtxKingSecond:
		return true
	case CtxMove:
		return !g.sideHasMove(g.Turn.Current)
	}
	return false
}
