package tournament

import (
	"fmt"

	"github.com/soltak/tourchain/core"
	"github.com/soltak/tourchain/vm"
)

// processBlock is the per-block housekeeping pass over every tournament,
// registered as a vm block hook. Tournament IDs come back sorted from the
// state, so every node walks them in the same order and derives the same
// follow-on state. An error here rejects the block: time-driven transitions
// are as much consensus as transaction handlers are.
func processBlock(ctx *vm.Context) error {
	ids, err := ctx.State.TournamentIDs()
	if err != nil {
		return fmt.Errorf("list tournaments: %w", err)
	}
	eng := NewEngine(ctx)
	now := ctx.HeadBlockTime()

	for _, id := range ids {
		t, err := ctx.State.GetTournament(id)
		if err != nil {
			return fmt.Errorf("tournament %s: %w", id, err)
		}
		switch t.State {
		case core.StateAcceptingRegistrations:
			if now >= t.Options.RegistrationDeadline {
				if err := eng.OnRegistrationDeadlinePassed(t); err != nil {
					return err
				}
			}
		case core.StateAwaitingStart:
			if now >= t.StartTime {
				if err := eng.OnStartTimeArrived(t); err != nil {
					return err
				}
			}
		case core.StateInProgress:
			done, err := finalComplete(ctx, t)
			if err != nil {
				return err
			}
			if done {
				if err := eng.OnFinalGameCompleted(t); err != nil {
					return err
				}
			} else if err := eng.CheckForNewMatchesToStart(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// finalComplete reports whether the root match of an in-progress
// tournament's bracket has been decided.
func finalComplete(ctx *vm.Context, t *core.Tournament) (bool, error) {
	details, err := ctx.State.GetTournamentDetails(t.DetailsID)
	if err != nil {
		return false, fmt.Errorf("tournament %s details: %w", t.ID, err)
	}
	if len(details.Matches) == 0 {
		return false, fmt.Errorf("%w: in-progress tournament %s has no matches", core.ErrInvariant, t.ID)
	}
	final, err := ctx.State.GetMatch(details.Matches[len(details.Matches)-1])
	if err != nil {
		return false, err
	}
	return final.State == core.MatchComplete, nil
}
