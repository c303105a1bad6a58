package game

import (
	"fmt"

	engine "github.com/jason-s-yu/rifts/engine"
	"github.com/notnil/chess"
)

var chessPieces = [2][6]chess.Piece{
	engine.White: {
		engine.Pawn: chess.WhitePawn, engine.Knight: chess.WhiteKnight, engine.Bishop: chess.WhiteBishop,
		engine.Rook: chess.WhiteRook, engine.Queen: chess.WhiteQueen, engine.King: chess.WhiteKing,
	},
	engine.Black: {
		engine.Pawn: chess.BlackPawn, engine.Knight: chess.BlackKnight, engine.Bishop: chess.BlackBishop,
		engine.Rook: chess.BlackRook, engine.Queen: chess.BlackQueen, engine.King: chess.BlackKing,
	},
}

// chessBoard converts the engine board. Engine row 0 is rank 8.
func chessBoard(g *engine.GameState) *chess.Board {
	m := make(map[chess.Square]chess.Piece)
	for i := 0; i < engine.NumSquares; i++ {
		sq := engine.Square(i)
		p := g.PieceAt(sq)
		if p == nil {
			continue
		}
		m[chess.Square((7-sq.Row())*8+sq.Col())] = chessPieces[p.Color][p.Type]
	}
	return chess.NewBoard(m)
}

// PositionFEN renders the position as FEN. Castling and en passant do not
// exist in this variant, so those fields are always "-". The move number
// counts full turns.
func PositionFEN(g *engine.GameState) string {
	side := "w"
	if g.CurrentPlayer() == engine.Black {
		side = "b"
	}
	full := (int(g.TurnNumber) + 1) / 2
	if full < 1 {
		full = 1
	}
	return fmt.Sprintf("%s %s - - 0 %d", chessBoard(g).String(), side, full)
}

// DrawBoard returns an ASCII diagram of the position for logs.
func DrawBoard(g *engine.GameState) string {
	return chessBoard(g).Draw()
}
