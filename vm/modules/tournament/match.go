package tournament

import (
	"fmt"

	"github.com/soltak/tourchain/core"
	"github.com/soltak/tourchain/crypto"
	"github.com/soltak/tourchain/events"
)

// matchID derives the deterministic identifier of the i-th match in a
// tournament's bracket tree.
func matchID(tournamentID string, i uint32) string {
	return crypto.Hash([]byte(fmt.Sprintf("%s:match:%d", tournamentID, i)))
}

// newMatch creates the empty i-th match of the tree, waiting on the matches
// that feed it.
func newMatch(tournamentID string, i uint32) *core.Match {
	return &core.Match{
		ID:           matchID(tournamentID, i),
		TournamentID: tournamentID,
		State:        core.MatchWaitingOnPreviousMatches,
	}
}

// initiateMatch assigns players to a waiting match and starts it. A match
// handed a single player is a bye: it completes immediately with that
// player as winner, ready for the progression scanner to pick up.
func (e *Engine) initiateMatch(m *core.Match, players []string) error {
	if m.State != core.MatchWaitingOnPreviousMatches {
		return fmt.Errorf("%w: initiating match %s in state %s", core.ErrInvariant, m.ID, m.State)
	}
	m.Players = players
	m.StartTime = e.ctx.HeadBlockTime()
	m.State = core.MatchInProgress
	if len(players) == 1 {
		m.Winners = []string{players[0]}
		m.EndTime = m.StartTime
		m.State = core.MatchComplete
	}
	if err := e.ctx.State.SetMatch(m); err != nil {
		return err
	}
	e.emit(events.EventMatchStarted, map[string]any{
		"match_id":      m.ID,
		"tournament_id": m.TournamentID,
		"players":       players,
	})
	if m.State == core.MatchComplete {
		e.emit(events.EventMatchCompleted, map[string]any{
			"match_id":      m.ID,
			"tournament_id": m.TournamentID,
			"winner":        m.Winners[0],
		})
	}
	return nil
}
