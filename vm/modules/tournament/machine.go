package tournament

import (
	"fmt"

	"github.com/soltak/tourchain/core"
)

// EventKind names the four externally-supplied tournament events.
type EventKind string

const (
	EvPlayerRegistered           EventKind = "player_registered"
	EvRegistrationDeadlinePassed EventKind = "registration_deadline_passed"
	EvStartTimeArrived           EventKind = "start_time_arrived"
	EvFinalGameCompleted         EventKind = "final_game_completed"
)

// transitionRow is one guarded row of the transition table.
type transitionRow struct {
	from  core.TournamentState
	event EventKind
	// guard, when non-nil, must return true for the row to fire.
	// Rows are tried in order, so a guarded row shadows a later
	// unguarded one for the same (from, event) pair.
	guard func(t *core.Tournament) bool
	to    core.TournamentState
}

// transitionTable mirrors the tournament lifecycle:
//
//	accepting_registrations --player_registered (last slot)--> awaiting_start
//	accepting_registrations --player_registered--> accepting_registrations
//	accepting_registrations --registration_deadline_passed--> registration_period_expired
//	awaiting_start --start_time_arrived--> in_progress
//	in_progress --final_game_completed--> concluded
var transitionTable = []transitionRow{
	{core.StateAcceptingRegistrations, EvPlayerRegistered, willBeFullyRegistered, core.StateAwaitingStart},
	{core.StateAcceptingRegistrations, EvPlayerRegistered, nil, core.StateAcceptingRegistrations},
	{core.StateAcceptingRegistrations, EvRegistrationDeadlinePassed, nil, core.StateRegistrationPeriodExpired},
	{core.StateAwaitingStart, EvStartTimeArrived, nil, core.StateInProgress},
	{core.StateInProgress, EvFinalGameCompleted, nil, core.StateConcluded},
}

// willBeFullyRegistered reports whether the registration being processed
// fills the last open slot.
func willBeFullyRegistered(t *core.Tournament) bool {
	return t.RegisteredPlayers == t.Options.NumberOfPlayers-1
}

// transition is the pure state function: given the current tag and an event
// it yields the next tag. It performs no effects. An event with no matching
// row means the outer validation pass delivered an illegal event; that is
// surfaced as an invariant violation, not tolerated.
func transition(t *core.Tournament, ev EventKind) (core.TournamentState, error) {
	for _, row := range transitionTable {
		if row.from != t.State || row.event != ev {
			continue
		}
		if row.guard != nil && !row.guard(t) {
			continue
		}
		return row.to, nil
	}
	return "", fmt.Errorf("%w: event %s in state %s for tournament %s",
		core.ErrInvariant, ev, t.State, t.ID)
}
