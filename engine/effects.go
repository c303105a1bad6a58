package engine

import "fmt"

// EffectKind identifies one rift effect. Values 1..20 match the d20 face that
// selects them; EffectBlank (21) is the fallback for anything else.
type EffectKind uint8

const (
	EffectNone EffectKind = iota
	EffectNecromancerTrap
	EffectArcherTrickShot
	EffectSandworm
	EffectHonorableSacrifice
	EffectDemotion
	EffectFootSoldierGambit
	EffectFamine
	EffectHolidayRejuvenation
	EffectSandstorm
	EffectDragonBreath
	EffectJackFrostMischief
	EffectPortalInTheRift
	EffectCatapultRoulette
	EffectConquerorsTale
	EffectMedusaGaze
	EffectTimeDistortion
	EffectCrossroadDemonDeal
	EffectFairyFountain
	EffectEerieFogTurmoil
	EffectSpringOfRevival
	EffectBlank
	numEffectKinds
)

// EffectCategory separates one-shot effects from field effects.
type EffectCategory uint8

const (
	CategorySpecial EffectCategory = iota
	CategoryField
)

func (c EffectCategory) String() string {
	if c == CategoryField {
		return "field"
	}
	return "special"
}

// EffectInfo is the static description of an effect kind.
type EffectInfo struct {
	Name        string
	Category    EffectCategory
	Rating      uint8
	Description string
}

var effectTable = [numEffectKinds]EffectInfo{
	EffectNone:                {"", CategorySpecial, 0, ""},
	EffectNecromancerTrap:     {"Necromancer's Trap", CategorySpecial, 1, "Remove your piece. Place one of your opponent's captured pieces onto the rift."},
	EffectArcherTrickShot:     {"Archer's Trick Shot", CategorySpecial, 5, "Pick a piece up to 3 squares away in a straight line from the rift and remove it."},
	EffectSandworm:            {"Sandworm", CategorySpecial, 3, "Remove all pieces within 1 square of the rift, plus the activating piece."},
	EffectHonorableSacrifice:  {"Honorable Sacrifice", CategorySpecial, 3, "Remove your activating piece and one enemy piece within 1 square."},
	EffectDemotion:            {"Demotion", CategorySpecial, 1, "Remove your activating piece. If it was not a pawn, place a captured pawn of yours on the rift."},
	EffectFootSoldierGambit:   {"Foot Soldier's Gambit", CategorySpecial, 4, "The activating piece must immediately move again."},
	EffectFamine:              {"Famine", CategoryField, 2, "Pawns cannot move."},
	EffectHolidayRejuvenation: {"Holiday's Rejuvenation", CategoryField, 4, "Pawns may move two spaces forward. Rooks, bishops and queens can jump over 1 friendly piece. Knights move 3+1 instead of 2+1."},
	EffectSandstorm:           {"Sandstorm", CategoryField, 2, "Pawns and kings cannot move. Knights move only 1 square. Rooks, bishops and queens have a range of 3 squares."},
	EffectDragonBreath:        {"Dragon's Breath", CategorySpecial, 4, "Choose a direction; remove the first enemy piece up to 3 squares away."},
	EffectJackFrostMischief:   {"Jack Frost's Mischief", CategoryField, 2, "Roll a D20: odd, nothing happens; even, the piece slides 1 extra square in the same direction."},
	EffectPortalInTheRift:     {"Portal in the Rift", CategorySpecial, 4, "Move the activating piece to another unactivated rift."},
	EffectCatapultRoulette:    {"Catapult Roulette", CategorySpecial, 3, "Roll 2D8 to choose a random square. Remove any piece on that square."},
	EffectConquerorsTale:      {"Conqueror's Tale", CategorySpecial, 5, "Your king gains the ability to move twice per turn for the rest of the game."},
	EffectMedusaGaze:          {"Medusa's Gaze", CategorySpecial, 2, "The activating piece is frozen in place."},
	EffectTimeDistortion:      {"Time Distortion", CategoryField, 3, "All pieces within a random radius of the rift are frozen."},
	EffectCrossroadDemonDeal:  {"Crossroad Demon's Deal", CategorySpecial, 2, "You may decline. If accepted: remove your activating piece and roll a D20."},
	EffectFairyFountain:       {"Fairy Fountain", CategorySpecial, 2, "An activating pawn gains new movement: forward 2 spaces, plus 1 space left or right."},
	EffectEerieFogTurmoil:     {"Eerie Fog's Turmoil", CategoryField, 2, "Roll a D20: 1-2, your next turn is skipped."},
	EffectSpringOfRevival:     {"Spring of Revival", CategorySpecial, 5, "Place one of your captured pieces onto a starting square."},
	EffectBlank:               {"Blank", CategoryField, 3, "Pawns may now capture sideways."},
}

// Info returns the static description of the effect.
func (k EffectKind) Info() EffectInfo {
	if k >= numEffectKinds {
		return effectTable[EffectNone]
	}
	return effectTable[k]
}

func (k EffectKind) String() string { return k.Info().Name }

// EffectForRoll maps a d20 face to its effect. It is a pure function of the
// roll; anything outside 1..20 maps to EffectBlank.
func EffectForRoll(roll int) EffectKind {
	if roll < 1 || roll > 20 {
		return EffectBlank
	}
	return EffectKind(roll)
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// RollRiftDie draws the d20 for the pending rift and resolves its effect.
func (g *GameState) RollRiftDie() (int, error) {
	if err := g.checkRollPending(); err != nil {
		return 0, err
	}
	roll := g.rollD20()
	g.resolveRoll(roll)
	return roll, nil
}

// ResolveRoll resolves the pending rift with a roll supplied by the caller.
// It exists for replaying recorded games and for tests.
func (g *GameState) ResolveRoll(roll int) error {
	if err := g.checkRollPending(); err != nil {
		return err
	}
	g.resolveRoll(roll)
	return nil
}

func (g *GameState) checkRollPending() error {
	if g.Phase == PhaseEnded {
		return fmt.Errorf("roll: %w", ErrGameOver)
	}
	if g.Phase != PhasePlaying {
		return fmt.Errorf("roll: %w", ErrWrongPhase)
	}
	if g.Pending.Type != PendingRoll {
		return fmt.Errorf("roll: %w", ErrNoRollPending)
	}
	if g.Turn.DiceRolledThisTurn {
		return fmt.Errorf("roll: %w", ErrAlreadyRolled)
	}
	return nil
}

// effectCtx carries the activation an effect resolves around.
type effectCtx struct {
	player Color
	piece  PieceID
	rift   Square
	kind   EffectKind
}

func (g *GameState) pendingCtx() effectCtx {
	return effectCtx{player: g.Pending.Player, piece: g.Pending.Piece, rift: g.Pending.Rift, kind: g.Pending.Kind}
}

func (g *GameState) resolveRoll(roll int) {
	g.Turn.DiceRolledThisTurn = true
	kind := EffectForRoll(roll)
	ctx := effectCtx{player: g.Pending.Player, piece: g.Pending.Piece, rift: g.Pending.Rift, kind: kind}
	g.Pending = PendingAction{Piece: NoPiece, Rift: NoSquare}
	g.LastEffect = EffectRecord{Roll: uint8(roll), Kind: kind, Player: ctx.player, Rift: ctx.rift}
	g.saveRollback()
	err := g.runHandler(func() error { return g.dispatchEffect(ctx) })
	g.afterHandler(err)
}

// runHandler calls fn, turning a panic into an error so the resolution can
// be rolled back.
func (g *GameState) runHandler(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("effect handler panic: %v", r)
		}
	}()
	return fn()
}

// afterHandler either waits for a pending choice or completes the resolution.
// A failed handler restores the pre-resolution rule state first.
func (g *GameState) afterHandler(err error) {
	if err != nil {
		g.restoreRollback()
		g.Pending = PendingAction{Piece: NoPiece, Rift: NoSquare}
		g.LastEffect.Outcome = OutcomeFailed
		g.LastEffect.Detail = err.Error()
		g.LastEffect.Removed = nil
		g.completeEffect()
		return
	}
	if g.Pending.Type.IsChoice() {
		return
	}
	g.completeEffect()
}

// completeEffect is the single completion point of every resolution.
func (g *GameState) completeEffect() {
	g.Rollback = EffectSnapshot{}
	if g.LastEffect.Outcome == OutcomeNone {
		g.LastEffect.Outcome = OutcomeApplied
	}
	g.settleKings(g.LastEffect.Player)
	g.concludeAction()
}

func (g *GameState) noop(detail string) error {
	g.LastEffect.Outcome = OutcomeNoOp
	g.LastEffect.Detail = detail
	return nil
}

func (g *GameState) dispatchEffect(ctx effectCtx) error {
	switch ctx.kind {
	case EffectNecromancerTrap:
		return g.necromancerTrap(ctx)
	case EffectArcherTrickShot:
		return g.archerTrickShot(ctx)
	case EffectSandworm:
		return g.sandworm(ctx)
	case EffectHonorableSacrifice:
		return g.honorableSacrifice(ctx)
	case EffectDemotion:
		return g.demotion(ctx)
	case EffectFootSoldierGambit:
		return g.footSoldierGambit(ctx)
	case EffectFamine:
		g.setFieldEffect(FieldFamine)
		return nil
	case EffectHolidayRejuvenation:
		g.setFieldEffect(FieldHolidayRejuvenation)
		return nil
	case EffectSandstorm:
		return g.sandstorm(ctx)
	case EffectDragonBreath:
		return g.dragonBreath(ctx)
	case EffectJackFrostMischief:
		return g.jackFrostMischief(ctx)
	case EffectPortalInTheRift:
		return g.portalInTheRift(ctx)
	case EffectCatapultRoulette:
		return g.catapultRoulette(ctx)
	case EffectConquerorsTale:
		return g.conquerorsTale(ctx)
	case EffectMedusaGaze:
		return g.medusaGaze(ctx)
	case EffectTimeDistortion:
		return g.timeDistortion(ctx)
	case EffectCrossroadDemonDeal:
		return g.crossroadDemonDeal(ctx)
	case EffectFairyFountain:
		return g.fairyFountain(ctx)
	case EffectEerieFogTurmoil:
		return g.eerieFogTurmoil(ctx)
	case EffectSpringOfRevival:
		return g.springOfRevival(ctx)
	case EffectBlank:
		g.setFieldEffect(FieldBlank)
		return nil
	}
	return fmt.Errorf("unknown effect kind %d", ctx.kind)
}

// suspend stores a pending choice for the activating player.
func (g *GameState) suspend(t PendingType, ctx effectCtx) {
	g.Pending = PendingAction{Type: t, Player: ctx.player, Piece: ctx.piece, Rift: ctx.rift, Kind: ctx.kind}
}

// activatorSquare returns where the activator stands, which is the rift
// unless a handler already moved it.
func (g *GameState) activatorSquare(ctx effectCtx) (Square, error) {
	if ctx.rift.Valid() && g.Board[ctx.rift] == ctx.piece {
		return ctx.rift, nil
	}
	if sq := g.SquareOf(ctx.piece); sq != NoSquare {
		return sq, nil
	}
	return NoSquare, fmt.Errorf("activating piece %d is not on the board", ctx.piece)
}

// settleKings ends the game when a king has left the board. If both kings
// are gone the activator's opponent wins.
func (g *GameState) settleKings(activator Color) {
	if g.Phase != PhasePlaying {
		return
	}
	white, black := g.kingOnBoard(White), g.kingOnBoard(Black)
	switch {
	case white && black:
		return
	case white:
		g.endGame(White)
	case black:
		g.endGame(Black)
	default:
		g.endGame(activator.Opponent())
	}
}
