package engine

import (
	"errors"
	"testing"
)

// TestPawnOpeningScenario: a white pawn on a2 may step or double-step; after
// stepping it may only step.
func TestPawnOpeningScenario(t *testing.T) {
	g := startedGame(t)
	sameSquares(t, g.LegalMoves(sq(6, 0)), []Square{sq(5, 0), sq(4, 0)})
	mustMove(t, g, sq(6, 0), sq(5, 0))
	sameSquares(t, g.LegalMoves(sq(5, 0)), []Square{sq(4, 0)})
}

func TestPawnCaptures(t *testing.T) {
	g := startedGame(t)
	arrange(t, g,
		pc(Pawn, White, 4, 3),
		pc(Pawn, Black, 3, 2), // capturable
		pc(Pawn, White, 3, 4), // own piece, never a target
		pc(Pawn, Black, 3, 3), // blocks the push
	)
	sameSquares(t, g.LegalMoves(sq(4, 3)), []Square{sq(3, 2)})
}

func TestKnightAndKingOffsets(t *testing.T) {
	g := startedGame(t)
	sameSquares(t, g.LegalMoves(sq(7, 1)), []Square{sq(5, 0), sq(5, 2)})
	if moves := g.LegalMoves(sq(7, 4)); len(moves) != 0 {
		t.Errorf("boxed-in king should have no moves, got %v", names(moves))
	}
}

func TestSliderRays(t *testing.T) {
	g := startedGame(t)
	arrange(t, g,
		pc(Rook, White, 4, 0),
		pc(Pawn, White, 4, 2),
		pc(Pawn, Black, 2, 0),
	)
	sameSquares(t, g.LegalMoves(sq(4, 0)), []Square{
		sq(3, 0), sq(2, 0), // up to and including the enemy
		sq(5, 0), sq(6, 0), sq(7, 0),
		sq(4, 1), // stops before own pawn
	})
}

func TestQueenCombinesRays(t *testing.T) {
	g := startedGame(t)
	arrange(t, g, pc(Queen, White, 4, 4), pc(King, White, 6, 0), pc(King, Black, 0, 1))
	if got := len(g.LegalMoves(sq(4, 4))); got != 27 {
		t.Fatalf("centre queen on an open board: want 27 moves, got %d", got)
	}
}

// TestFamine: every pawn is immobile, other pieces keep their moves.
func TestFamine(t *testing.T) {
	g := startedGame(t)
	before := map[Square][]Square{}
	for s := Square(0); s < NumSquares; s++ {
		if p := g.PieceAt(s); p != nil && p.Type != Pawn {
			before[s] = g.LegalMoves(s)
		}
	}
	g.setFieldEffect(FieldFamine)
	for s := Square(0); s < NumSquares; s++ {
		p := g.PieceAt(s)
		if p == nil {
			continue
		}
		if p.Type == Pawn {
			if moves := g.LegalMoves(s); len(moves) != 0 {
				t.Errorf("pawn on %s has moves %v under famine", s.Name(), names(moves))
			}
			continue
		}
		sameSquares(t, g.LegalMoves(s), before[s])
	}
}

func TestSandstorm(t *testing.T) {
	g := startedGame(t)
	arrange(t, g,
		pc(Pawn, White, 6, 0),
		pc(Knight, White, 4, 4),
		pc(Rook, White, 7, 1),
		pc(King, White, 7, 7),
	)
	g.setFieldEffect(FieldSandstorm)

	if moves := g.LegalMoves(sq(6, 0)); len(moves) != 0 {
		t.Errorf("pawn moves under sandstorm: %v", names(moves))
	}
	if moves := g.LegalMoves(sq(7, 7)); len(moves) != 0 {
		t.Errorf("king moves under sandstorm: %v", names(moves))
	}
	if got := len(g.LegalMoves(sq(4, 4))); got != 8 {
		t.Errorf("knight: want 8 king-step moves, got %d", got)
	}
	for _, m := range g.LegalMoves(sq(7, 1)) {
		if chebyshev(sq(7, 1), m) > 3 {
			t.Errorf("rook reaches %s beyond range 3", m.Name())
		}
	}
	sameSquares(t, g.LegalMoves(sq(7, 1)), []Square{
		sq(6, 1), sq(5, 1), sq(4, 1),
		sq(7, 2), sq(7, 3), sq(7, 4),
		sq(7, 0),
	})
}

func TestHolidayRejuvenation(t *testing.T) {
	g := startedGame(t)
	arrange(t, g,
		pc(Pawn, White, 5, 3),
		pc(Knight, White, 4, 4),
		pc(Rook, White, 7, 0),
		pc(Pawn, White, 6, 0),
		pc(Pawn, White, 5, 0),
		pc(Pawn, Black, 2, 0),
	)
	g.setFieldEffect(FieldHolidayRejuvenation)

	// Pawn off its start row may still advance two.
	sameSquares(t, g.LegalMoves(sq(5, 3)), []Square{sq(4, 3), sq(3, 3)})

	sameSquares(t, g.LegalMoves(sq(4, 4)), []Square{
		sq(1, 3), sq(1, 5), sq(3, 1), sq(3, 7),
		sq(5, 1), sq(5, 7), sq(7, 3), sq(7, 5),
	})

	// The rook hops the first friendly pawn only; the second one blocks.
	moves := squareSet(g.LegalMoves(sq(7, 0)))
	if moves[sq(6, 0)] || moves[sq(5, 0)] {
		t.Error("rook may not land on a friendly piece")
	}
	if moves[sq(4, 0)] {
		t.Error("rook may not hop two friendly pieces")
	}

	arrange(t, g, pc(Rook, White, 7, 0), pc(Pawn, White, 6, 0), pc(Pawn, Black, 3, 0))
	sameSquares(t, filterCol(g.LegalMoves(sq(7, 0)), 0), []Square{sq(5, 0), sq(4, 0), sq(3, 0)})

	g.Rules.HolidaySliderJump = false
	if moves := filterCol(g.LegalMoves(sq(7, 0)), 0); len(moves) != 0 {
		t.Errorf("without the hop rule the rook is blocked, got %v", names(moves))
	}
}

func TestHolidayPawnBlocked(t *testing.T) {
	g := startedGame(t)
	arrange(t, g, pc(Pawn, White, 5, 3), pc(Knight, Black, 4, 3), pc(Pawn, White, 6, 1))
	g.setFieldEffect(FieldHolidayRejuvenation)

	if moves := g.LegalMoves(sq(5, 3)); len(moves) != 0 {
		t.Errorf("blocked pawn may not jump, got %v", names(moves))
	}
	sameSquares(t, g.LegalMoves(sq(6, 1)), []Square{sq(5, 1), sq(4, 1)})
}

func filterCol(s []Square, col int) []Square {
	var out []Square
	for _, x := range s {
		if x.Col() == col {
			out = append(out, x)
		}
	}
	return out
}

func TestBlankSidewaysCapture(t *testing.T) {
	g := startedGame(t)
	arrange(t, g,
		pc(Pawn, White, 4, 3),
		pc(Pawn, Black, 4, 2),
		pc(Pawn, White, 4, 4),
	)
	g.setFieldEffect(FieldBlank)
	sameSquares(t, g.LegalMoves(sq(4, 3)), []Square{sq(3, 3), sq(4, 2)})
}

func TestFairyFountainPawn(t *testing.T) {
	g := startedGame(t)
	arrange(t, g,
		pc(Pawn, White, 5, 3),
		pc(Pawn, Black, 4, 3), // leapt over
		pc(Pawn, Black, 3, 2), // capturable landing
		pc(Pawn, White, 3, 4), // own landing, excluded
	)
	g.Pieces[g.Board[sq(5, 3)]].FairyFountain = true
	sameSquares(t, g.LegalMoves(sq(5, 3)), []Square{sq(3, 3), sq(3, 2)})

	// A field effect takes precedence over the fairy pattern.
	g.setFieldEffect(FieldFamine)
	if moves := g.LegalMoves(sq(5, 3)); len(moves) != 0 {
		t.Errorf("famine must override the fairy pawn, got %v", names(moves))
	}
}

func TestValidateMoveReasons(t *testing.T) {
	g := startedGame(t)
	cases := []struct {
		name     string
		from, to Square
		want     error
	}{
		{"empty source", sq(4, 4), sq(3, 4), ErrNoPiece},
		{"wrong color", sq(1, 0), sq(2, 0), ErrNotYourTurn},
		{"own piece", sq(7, 0), sq(6, 0), ErrOwnPiece},
		{"illegal shape", sq(6, 0), sq(3, 0), ErrIllegalMove},
		{"off board", sq(6, 0), NoSquare, ErrOffBoard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := g.ValidateMove(tc.from, tc.to); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	g.Pieces[g.Board[sq(6, 1)]].Frozen = true
	if err := g.ValidateMove(sq(6, 1), sq(5, 1)); !errors.Is(err, ErrPieceFrozen) {
		t.Fatalf("frozen: want ErrPieceFrozen, got %v", err)
	}
}

func TestDecisionCtx(t *testing.T) {
	g := NewGame(1, DefaultHouseRules())
	if g.DecisionCtx() != CtxSetup {
		t.Fatalf("want CtxSetup, got %d", g.DecisionCtx())
	}
	gs := startedGame(t)
	if gs.DecisionCtx() != CtxMove {
		t.Fatalf("want CtxMove, got %d", gs.DecisionCtx())
	}
	mustMove(t, gs, sq(6, 6), sq(5, 6))
	if gs.DecisionCtx() != CtxRoll {
		t.Fatalf("want CtxRoll, got %d", gs.DecisionCtx())
	}
	if err := gs.ResolveRoll(17); err != nil {
		t.Fatal(err)
	}
	if gs.DecisionCtx() != CtxChoice {
		t.Fatalf("want CtxChoice, got %d", gs.DecisionCtx())
	}
	if err := gs.Resign(White); err != nil {
		t.Fatal(err)
	}
	if gs.DecisionCtx() != CtxTerminal {
		t.Fatalf("want CtxTerminal, got %d", gs.DecisionCtx())
	}
}

// TestLegalActionsOpening: 16 pawn moves plus 4 knight moves.
func TestLegalActionsOpening(t *testing.T) {
	g := startedGame(t)
	actions := g.LegalActions()
	if len(actions) != 20 {
		t.Fatalf("want 20 opening moves, got %d", len(actions))
	}
	for _, m := range actions {
		if !g.IsValidMove(m.From, m.To) {
			t.Errorf("LegalActions lists invalid move %s", m)
		}
	}
	if g.CanPass() {
		t.Error("cannot pass with moves available")
	}
}
