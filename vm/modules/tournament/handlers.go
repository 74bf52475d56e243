package tournament

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/soltak/tourchain/core"
	"github.com/soltak/tourchain/crypto"
	"github.com/soltak/tourchain/events"
	"github.com/soltak/tourchain/vm"
)

func init() {
	vm.Register(core.TxTournamentCreate, handleTournamentCreate)
	vm.Register(core.TxTournamentJoin, handleTournamentJoin)
	vm.Register(core.TxMatchReport, handleMatchReport)
	vm.RegisterBlockHook(processBlock)
}

// validateOptions checks the immutable tournament configuration against the
// creating block's time.
func validateOptions(opts *core.TournamentOptions, now int64) error {
	if opts.NumberOfPlayers < 2 {
		return errors.New("number_of_players must be at least 2")
	}
	if opts.BuyIn == 0 {
		return errors.New("buy_in must be > 0")
	}
	// Caps the full prize pool so the per-join accumulation cannot wrap.
	if opts.BuyIn > math.MaxInt64/uint64(opts.NumberOfPlayers) {
		return errors.New("buy_in too large for number_of_players")
	}
	if opts.RegistrationDeadline <= now {
		return errors.New("registration_deadline must be in the future")
	}
	if (opts.StartTime != 0) == (opts.StartDelay != 0) {
		return errors.New("exactly one of start_time and start_delay must be set")
	}
	if opts.StartTime != 0 && opts.StartTime < opts.RegistrationDeadline {
		return errors.New("start_time must not precede registration_deadline")
	}
	if opts.StartDelay < 0 {
		return errors.New("start_delay must not be negative")
	}
	if len(opts.Whitelist) > 0 {
		if uint32(len(opts.Whitelist)) < opts.NumberOfPlayers {
			return errors.New("whitelist must have room for every player")
		}
		seen := make(map[string]bool, len(opts.Whitelist))
		for _, account := range opts.Whitelist {
			if _, err := crypto.PubKeyFromHex(account); err != nil {
				return fmt.Errorf("whitelist entry %q: %w", account, err)
			}
			if seen[account] {
				return fmt.Errorf("duplicate whitelist entry %q", account)
			}
			seen[account] = true
		}
	}
	return nil
}

func handleTournamentCreate(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TournamentCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode tournament_create payload: %w", err)
	}
	if err := validateOptions(&p.Options, ctx.HeadBlockTime()); err != nil {
		return err
	}

	// Deterministic IDs: the summary ID comes from the creating tx, the
	// details ID from the summary ID.
	tournamentID := crypto.Hash([]byte(ctx.Tx.ID + ":tournament"))
	detailsID := crypto.Hash([]byte(tournamentID + ":details"))

	t := &core.Tournament{
		ID:        tournamentID,
		Creator:   ctx.Tx.From,
		Options:   p.Options,
		DetailsID: detailsID,
		State:     core.StateAcceptingRegistrations,
	}
	if err := ctx.State.SetTournament(t); err != nil {
		return err
	}
	details := &core.TournamentDetails{
		ID:           detailsID,
		TournamentID: tournamentID,
		Payers:       make(map[string]uint64),
	}
	if err := ctx.State.SetTournamentDetails(details); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventTournamentCreated,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"tournament_id": tournamentID,
				"creator":       ctx.Tx.From,
				"players":       p.Options.NumberOfPlayers,
				"buy_in":        p.Options.BuyIn,
			},
		})
	}
	return nil
}

func handleTournamentJoin(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TournamentJoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode tournament_join payload: %w", err)
	}
	if p.Player == "" {
		return errors.New("player required")
	}
	if _, err := crypto.PubKeyFromHex(p.Player); err != nil {
		return fmt.Errorf("invalid player pubkey: %w", err)
	}

	t, err := ctx.State.GetTournament(p.TournamentID)
	if err != nil {
		return fmt.Errorf("tournament %q not found: %w", p.TournamentID, err)
	}
	if t.State != core.StateAcceptingRegistrations {
		return fmt.Errorf("tournament %s is not accepting registrations (state %s)", t.ID, t.State)
	}
	if len(t.Options.Whitelist) > 0 {
		allowed := false
		for _, account := range t.Options.Whitelist {
			if account == p.Player {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("player %s is not on the tournament whitelist", p.Player)
		}
	}

	return NewEngine(ctx).OnPlayerRegistered(t, ctx.Tx.From, p.Player)
}

func handleMatchReport(ctx *vm.Context, payload json.RawMessage) error {
	var p core.MatchReportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode match_report payload: %w", err)
	}

	m, err := ctx.State.GetMatch(p.MatchID)
	if err != nil {
		return fmt.Errorf("match %q not found: %w", p.MatchID, err)
	}
	if m.State != core.MatchInProgress {
		return fmt.Errorf("match %s is not in progress (state %s)", m.ID, m.State)
	}
	isPlayer := func(account string) bool {
		for _, pl := range m.Players {
			if pl == account {
				return true
			}
		}
		return false
	}
	if !isPlayer(ctx.Tx.From) {
		return fmt.Errorf("account %s is not a player of match %s", ctx.Tx.From, m.ID)
	}
	if !isPlayer(p.Winner) {
		return fmt.Errorf("reported winner %s is not a player of match %s", p.Winner, m.ID)
	}

	if m.Reports == nil {
		m.Reports = make(map[string]string)
	}
	m.Reports[ctx.Tx.From] = p.Winner

	if len(m.Reports) == len(m.Players) {
		agreed := true
		for _, claimed := range m.Reports {
			if claimed != p.Winner {
				agreed = false
				break
			}
		}
		if agreed {
			m.Winners = []string{p.Winner}
			m.EndTime = ctx.HeadBlockTime()
			m.State = core.MatchComplete
			m.Reports = nil
		} else {
			// Disagreement: discard all reports and replay, like a drawn
			// game forcing a rematch.
			m.Reports = nil
		}
	}
	if err := ctx.State.SetMatch(m); err != nil {
		return err
	}

	if m.State == core.MatchComplete && ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventMatchCompleted,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"match_id":      m.ID,
				"tournament_id": m.TournamentID,
				"winner":        m.Winners[0],
			},
		})
	}
	return nil
}
