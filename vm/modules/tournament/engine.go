package tournament

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/soltak/tourchain/core"
	"github.com/soltak/tourchain/events"
	"github.com/soltak/tourchain/vm"
)

// Engine applies tournament events to one tournament within the current
// block context. All mutation is synchronous and strictly sequential; a
// returned error aborts the enclosing operation before anything commits.
type Engine struct {
	ctx *vm.Context
}

// NewEngine binds an Engine to the executing block context.
func NewEngine(ctx *vm.Context) *Engine {
	return &Engine{ctx: ctx}
}

// debit removes amount from an account. A debit the balance cannot cover
// fails the whole operation; the executor's snapshot guarantees no partial
// state survives.
func (e *Engine) debit(account string, amount uint64) error {
	acc, err := e.ctx.State.GetAccount(account)
	if err != nil {
		return fmt.Errorf("get account %s: %w", account, err)
	}
	if acc.Balance < amount {
		return fmt.Errorf("insufficient balance: have %d, need %d", acc.Balance, amount)
	}
	acc.Balance -= amount
	return e.ctx.State.SetAccount(acc)
}

// credit adds amount to an account. A credit that would wrap the balance
// can only mean corrupted state and is fatal.
func (e *Engine) credit(account string, amount uint64) error {
	acc, err := e.ctx.State.GetAccount(account)
	if err != nil {
		return fmt.Errorf("get account %s: %w", account, err)
	}
	if acc.Balance > math.MaxUint64-amount {
		return fmt.Errorf("%w: crediting %d to %s overflows balance %d", core.ErrInvariant, amount, account, acc.Balance)
	}
	acc.Balance += amount
	return e.ctx.State.SetAccount(acc)
}

func (e *Engine) emit(typ events.EventType, data map[string]any) {
	if e.ctx.Emitter == nil {
		return
	}
	var txID string
	if e.ctx.Tx != nil {
		txID = e.ctx.Tx.ID
	}
	e.ctx.Emitter.Emit(events.Event{
		Type:        typ,
		TxID:        txID,
		BlockHeight: e.ctx.Block.Header.Height,
		Data:        data,
	})
}

// OnPlayerRegistered debits the payer, records the registration, and, when
// the last slot fills, schedules the start time. The debit happens before
// any record mutation so a failed debit leaves nothing half-applied.
func (e *Engine) OnPlayerRegistered(t *core.Tournament, payer, player string) error {
	next, err := transition(t, EvPlayerRegistered)
	if err != nil {
		return err
	}
	buyIn := t.Options.BuyIn

	if err := e.debit(payer, buyIn); err != nil {
		return err
	}

	details, err := e.ctx.State.GetTournamentDetails(t.DetailsID)
	if err != nil {
		return fmt.Errorf("tournament %s details: %w", t.ID, err)
	}
	i := sort.SearchStrings(details.RegisteredPlayers, player)
	if i < len(details.RegisteredPlayers) && details.RegisteredPlayers[i] == player {
		return fmt.Errorf("player %s already registered in tournament %s", player, t.ID)
	}
	details.RegisteredPlayers = append(details.RegisteredPlayers, "")
	copy(details.RegisteredPlayers[i+1:], details.RegisteredPlayers[i:])
	details.RegisteredPlayers[i] = player
	if details.Payers == nil {
		details.Payers = make(map[string]uint64)
	}
	details.Payers[payer] += buyIn
	if err := e.ctx.State.SetTournamentDetails(details); err != nil {
		return err
	}

	t.RegisteredPlayers++
	t.PrizePool += buyIn
	t.State = next
	if next == core.StateAwaitingStart {
		if t.Options.StartTime != 0 {
			t.StartTime = t.Options.StartTime
		} else {
			t.StartTime = e.ctx.HeadBlockTime() + t.Options.StartDelay*int64(time.Second)
		}
		log.Printf("[tournament] %s has enough players registered to begin", t.ID)
	}
	if err := e.ctx.State.SetTournament(t); err != nil {
		return err
	}

	e.emit(events.EventPlayerRegistered, map[string]any{
		"tournament_id": t.ID,
		"player":        player,
		"payer":         payer,
		"prize_pool":    t.PrizePool,
	})
	return nil
}

// OnRegistrationDeadlinePassed cancels the tournament and repays everyone
// who paid into the prize pool. The credit is a release of locked funds,
// not a transfer: no authorization from any counterparty is involved.
func (e *Engine) OnRegistrationDeadlinePassed(t *core.Tournament) error {
	next, err := transition(t, EvRegistrationDeadlinePassed)
	if err != nil {
		return err
	}
	details, err := e.ctx.State.GetTournamentDetails(t.DetailsID)
	if err != nil {
		return fmt.Errorf("tournament %s details: %w", t.ID, err)
	}

	payers := make([]string, 0, len(details.Payers))
	for payer := range details.Payers {
		payers = append(payers, payer)
	}
	sort.Strings(payers)
	for _, payer := range payers {
		if err := e.credit(payer, details.Payers[payer]); err != nil {
			return err
		}
	}

	details.Payers = make(map[string]uint64)
	if err := e.ctx.State.SetTournamentDetails(details); err != nil {
		return err
	}
	refunded := t.PrizePool
	t.PrizePool = 0
	t.State = next
	if err := e.ctx.State.SetTournament(t); err != nil {
		return err
	}

	log.Printf("[tournament] %s is canceled", t.ID)
	e.emit(events.EventTournamentCanceled, map[string]any{
		"tournament_id": t.ID,
		"refunded":      refunded,
	})
	return nil
}

// OnStartTimeArrived lays out the bracket: shuffles the registered players
// with the block randomness, creates every match of the tree at once, then
// seeds and initiates the first round. A first-round slot left as the bye
// sentinel is omitted, producing a single-player match that initiates as
// already decided.
func (e *Engine) OnStartTimeArrived(t *core.Tournament) error {
	next, err := transition(t, EvStartTimeArrived)
	if err != nil {
		return err
	}
	details, err := e.ctx.State.GetTournamentDetails(t.DetailsID)
	if err != nil {
		return fmt.Errorf("tournament %s details: %w", t.ID, err)
	}

	rounds := numRounds(t.Options.NumberOfPlayers)
	total := numMatches(rounds)
	firstRound := matchesInRound(rounds, 0)
	paired := seedBracket(details.RegisteredPlayers, e.ctx.RandomSeed(), rounds)

	matches := make([]string, 0, total)
	for i := uint32(0); i < total; i++ {
		m := newMatch(t.ID, i)
		if err := e.ctx.State.SetMatch(m); err != nil {
			return err
		}
		matches = append(matches, m.ID)
	}

	for i := uint32(0); i < firstRound; i++ {
		players := []string{paired[2*i]}
		if paired[2*i+1] != core.ByeAccount {
			players = append(players, paired[2*i+1])
		}
		m, err := e.ctx.State.GetMatch(matches[i])
		if err != nil {
			return err
		}
		if err := e.initiateMatch(m, players); err != nil {
			return err
		}
	}

	details.Matches = matches
	if err := e.ctx.State.SetTournamentDetails(details); err != nil {
		return err
	}
	t.State = next
	if err := e.ctx.State.SetTournament(t); err != nil {
		return err
	}

	log.Printf("[tournament] %s is beginning with %d matches", t.ID, total)
	e.emit(events.EventTournamentStarted, map[string]any{
		"tournament_id": t.ID,
		"matches":       len(matches),
	})
	return nil
}

// OnFinalGameCompleted concludes the tournament and pays the prize pool to
// the final winner.
func (e *Engine) OnFinalGameCompleted(t *core.Tournament) error {
	next, err := transition(t, EvFinalGameCompleted)
	if err != nil {
		return err
	}
	details, err := e.ctx.State.GetTournamentDetails(t.DetailsID)
	if err != nil {
		return fmt.Errorf("tournament %s details: %w", t.ID, err)
	}
	if len(details.Matches) == 0 {
		return fmt.Errorf("%w: tournament %s concluded with no matches", core.ErrInvariant, t.ID)
	}
	final, err := e.ctx.State.GetMatch(details.Matches[len(details.Matches)-1])
	if err != nil {
		return err
	}
	if len(final.Winners) != 1 {
		return fmt.Errorf("%w: final match %s has %d winners", core.ErrInvariant, final.ID, len(final.Winners))
	}
	winner := final.Winners[0]

	if err := e.credit(winner, t.PrizePool); err != nil {
		return err
	}
	t.EndTime = e.ctx.HeadBlockTime()
	t.State = next
	if err := e.ctx.State.SetTournament(t); err != nil {
		return err
	}

	log.Printf("[tournament] %s concluded, winner %s", t.ID, winner)
	e.emit(events.EventTournamentConcluded, map[string]any{
		"tournament_id": t.ID,
		"winner":        winner,
		"payout":        t.PrizePool,
	})
	return nil
}
