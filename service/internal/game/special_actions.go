package game

import (
	"fmt"

	"github.com/google/uuid"
	engine "github.com/jason-s-yu/rifts/engine"
	"github.com/jason-s-yu/rifts/service/internal/models"
)

// ProcessChoice resumes a rift effect that is waiting on its activator. The
// payload fields read depend on the pending choice:
//
//	necromancer       index
//	archer_target     square
//	dragon_direction  direction
//	portal_rift       square
//	demon_deal        accept
//	revival           index, square
//
// Assumes lock is held by the caller.
func (g *RiftGame) ProcessChoice(playerID uuid.UUID, color engine.Color, action models.GameAction) error {
	pending := g.Engine.Pending.Type
	if !pending.IsChoice() {
		return fmt.Errorf("choice: %w", engine.ErrNoChoicePending)
	}
	if err := requireActor(color, g.actingColor()); err != nil {
		return err
	}
	choice, err := parseChoice(pending, action)
	if err != nil {
		return err
	}
	before := g.mark()
	if err := g.Engine.SubmitChoice(choice); err != nil {
		return err
	}
	g.logAction(playerID, models.ActionChoice, map[string]interface{}{
		"type": pending.String(), "index": choice.Index, "square": choice.Square.Name(),
		"direction": choice.Direction.String(), "accept": choice.Accept,
	})
	g.announceEffect(playerID, color, map[string]interface{}{"choice": pending.String()})
	g.afterCommand(before, ReasonKingCaptured)
	return nil
}

// parseChoice builds the engine choice for the pending type. Unused fields
// keep their zero values with Square set to NoSquare.
func parseChoice(t engine.PendingType, action models.GameAction) (engine.Choice, error) {
	c := engine.Choice{Type: t, Square: engine.NoSquare}
	needIndex := func() error {
		i, ok := action.Int("index")
		if !ok {
			return fmt.Errorf("%s needs an index: %w", t, ErrBadPayload)
		}
		c.Index = i
		return nil
	}
	needSquare := func() error {
		sq, err := parseSquare(action, "square")
		if err != nil {
			return err
		}
		c.Square = sq
		return nil
	}

	var err error
	switch t {
	case engine.PendingNecromancer:
		err = needIndex()
	case engine.PendingArcherTarget, engine.PendingPortalRift:
		err = needSquare()
	case engine.PendingDragonDirection:
		name, _ := action.Text("direction")
		d, ok := engine.ParseDirection(name)
		if !ok {
			err = fmt.Errorf("direction %q: %w", name, ErrBadPayload)
		}
		c.Direction = d
	case engine.PendingDemonDeal:
		accept, ok := action.Bool("accept")
		if !ok {
			err = fmt.Errorf("demon deal needs accept: %w", ErrBadPayload)
		}
		c.Accept = accept
	case engine.PendingRevival:
		if err = needIndex(); err == nil {
			err = needSquare()
		}
	default:
		err = fmt.Errorf("choice %s: %w", t, engine.ErrNoChoicePending)
	}
	return c, err
}
