package tournament

import (
	"fmt"
	"math/bits"

	"github.com/soltak/tourchain/core"
)

// CheckForNewMatchesToStart is the once-per-block progression scan for an
// in-progress tournament. It walks the rounds from the leaves toward the
// root to find the last round whose matches are all complete; if the round
// after it has not started yet, the winners of the completed round are
// advanced into it. One pass per invocation: a freshly started round is
// left for future blocks, so calling this again with no new completions
// changes nothing.
func (e *Engine) CheckForNewMatchesToStart(t *core.Tournament) error {
	details, err := e.ctx.State.GetTournamentDetails(t.DetailsID)
	if err != nil {
		return fmt.Errorf("tournament %s details: %w", t.ID, err)
	}

	total := uint32(len(details.Matches))
	rounds := uint32(bits.Len32(total+1)) - 1

	lastCompleteRound := -1
	firstIncompleteWasWaiting := false
scan:
	for r := uint32(0); r < rounds; r++ {
		first := firstMatchInRound(total, r)
		for i := first; i < first+matchesInRound(rounds, r); i++ {
			m, err := e.ctx.State.GetMatch(details.Matches[i])
			if err != nil {
				return err
			}
			if m.State != core.MatchComplete {
				firstIncompleteWasWaiting = m.State == core.MatchWaitingOnPreviousMatches
				break scan
			}
		}
		lastCompleteRound = int(r)
	}

	if lastCompleteRound == -1 {
		return nil
	}
	if lastCompleteRound == int(rounds)-1 {
		// Final round complete; conclusion is driven by the block hook.
		return nil
	}
	if !firstIncompleteWasWaiting {
		// The next round is already underway.
		return nil
	}

	next := uint32(lastCompleteRound + 1)
	first := firstMatchInRound(total, next)
	for i := first; i < first+matchesInRound(rounds, next); i++ {
		left, right := childIndices(total, i)
		var winners []string
		for _, child := range []uint32{left, right} {
			cm, err := e.ctx.State.GetMatch(details.Matches[child])
			if err != nil {
				return err
			}
			// Every match in the prior round is complete here; a decided
			// match without exactly one winner is unrepresentable state.
			if len(cm.Winners) != 1 {
				return fmt.Errorf("%w: complete match %s has %d winners", core.ErrInvariant, cm.ID, len(cm.Winners))
			}
			winners = append(winners, cm.Winners[0])
		}
		m, err := e.ctx.State.GetMatch(details.Matches[i])
		if err != nil {
			return err
		}
		if err := e.initiateMatch(m, winners); err != nil {
			return err
		}
	}
	return nil
}
