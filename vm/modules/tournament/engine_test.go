package tournament

import (
	"sort"
	"testing"
	"time"

	"github.com/soltak/tourchain/core"
	"github.com/soltak/tourchain/events"
	"github.com/soltak/tourchain/internal/testutil"
	"github.com/soltak/tourchain/vm"
)

func newTestContext(t *testing.T, blockTime int64) *vm.Context {
	t.Helper()
	block := core.NewBlock(1, "prevhash", "proposer", nil)
	block.Header.Timestamp = blockTime
	return &vm.Context{
		State:   testutil.NewStateDB(),
		Block:   block,
		Emitter: events.NewEmitter(),
	}
}

// seedTournament writes a fresh tournament plus its details record and funds
// the given accounts.
func seedTournament(t *testing.T, ctx *vm.Context, opts core.TournamentOptions, accounts ...string) *core.Tournament {
	t.Helper()
	tour := &core.Tournament{
		ID:        "tour-1",
		Creator:   "creator",
		Options:   opts,
		DetailsID: "tour-1-details",
		State:     core.StateAcceptingRegistrations,
	}
	if err := ctx.State.SetTournament(tour); err != nil {
		t.Fatal(err)
	}
	details := &core.TournamentDetails{
		ID:           tour.DetailsID,
		TournamentID: tour.ID,
		Payers:       make(map[string]uint64),
	}
	if err := ctx.State.SetTournamentDetails(details); err != nil {
		t.Fatal(err)
	}
	for _, acc := range accounts {
		if err := ctx.State.SetAccount(&core.Account{Address: acc, Balance: 1000}); err != nil {
			t.Fatal(err)
		}
	}
	return tour
}

func balance(t *testing.T, ctx *vm.Context, account string) uint64 {
	t.Helper()
	acc, err := ctx.State.GetAccount(account)
	if err != nil {
		t.Fatal(err)
	}
	return acc.Balance
}

// completeMatch marks a match decided with the given winner, as if all its
// players had reported agreement.
func completeMatch(t *testing.T, ctx *vm.Context, id, winner string) {
	t.Helper()
	m, err := ctx.State.GetMatch(id)
	if err != nil {
		t.Fatal(err)
	}
	m.Winners = []string{winner}
	m.EndTime = ctx.Block.Header.Timestamp
	m.State = core.MatchComplete
	if err := ctx.State.SetMatch(m); err != nil {
		t.Fatal(err)
	}
}

func TestRegistrationFillsTournament(t *testing.T) {
	now := time.Now().UnixNano()
	ctx := newTestContext(t, now)
	eng := NewEngine(ctx)
	tour := seedTournament(t, ctx, core.TournamentOptions{
		NumberOfPlayers:      4,
		BuyIn:                100,
		RegistrationDeadline: now + int64(time.Hour),
		StartDelay:           30,
	}, "p1", "p2", "p3", "p4")

	for i, p := range []string{"p3", "p1", "p2"} {
		if err := eng.OnPlayerRegistered(tour, p, p); err != nil {
			t.Fatalf("register %s: %v", p, err)
		}
		if tour.State != core.StateAcceptingRegistrations {
			t.Fatalf("after %d registrations state = %s", i+1, tour.State)
		}
	}
	if err := eng.OnPlayerRegistered(tour, "p4", "p4"); err != nil {
		t.Fatalf("register p4: %v", err)
	}

	if tour.State != core.StateAwaitingStart {
		t.Errorf("state: got %s want %s", tour.State, core.StateAwaitingStart)
	}
	if tour.RegisteredPlayers != 4 {
		t.Errorf("registered: got %d want 4", tour.RegisteredPlayers)
	}
	if tour.PrizePool != 400 {
		t.Errorf("prize pool: got %d want 400", tour.PrizePool)
	}
	wantStart := now + 30*int64(time.Second)
	if tour.StartTime != wantStart {
		t.Errorf("start time: got %d want %d", tour.StartTime, wantStart)
	}
	if got := balance(t, ctx, "p1"); got != 900 {
		t.Errorf("p1 balance: got %d want 900", got)
	}

	details, err := ctx.State.GetTournamentDetails(tour.DetailsID)
	if err != nil {
		t.Fatal(err)
	}
	if !sort.StringsAreSorted(details.RegisteredPlayers) {
		t.Errorf("registered players not sorted: %v", details.RegisteredPlayers)
	}
	if details.Payers["p2"] != 100 {
		t.Errorf("p2 contribution: got %d want 100", details.Payers["p2"])
	}
}

func TestRegistrationRejectsDuplicateAndPoor(t *testing.T) {
	now := time.Now().UnixNano()
	ctx := newTestContext(t, now)
	eng := NewEngine(ctx)
	tour := seedTournament(t, ctx, core.TournamentOptions{
		NumberOfPlayers:      4,
		BuyIn:                100,
		RegistrationDeadline: now + int64(time.Hour),
		StartDelay:           30,
	}, "p1")

	if err := eng.OnPlayerRegistered(tour, "p1", "p1"); err != nil {
		t.Fatal(err)
	}
	if err := eng.OnPlayerRegistered(tour, "p1", "p1"); err == nil {
		t.Error("duplicate registration should fail")
	}
	// "pauper" has no account record, so a zero balance.
	if err := eng.OnPlayerRegistered(tour, "pauper", "pauper"); err == nil {
		t.Error("registration without funds should fail")
	}
}

func TestRegistrationRejectsHugeBuyIn(t *testing.T) {
	now := time.Now().UnixNano()
	ctx := newTestContext(t, now)
	eng := NewEngine(ctx)
	// A buy-in past the signed range must still read as an uncoverable
	// debit, never as a credit.
	tour := seedTournament(t, ctx, core.TournamentOptions{
		NumberOfPlayers:      4,
		BuyIn:                1<<63 + 100,
		RegistrationDeadline: now + int64(time.Hour),
		StartDelay:           30,
	}, "p1")

	if err := eng.OnPlayerRegistered(tour, "p1", "p1"); err == nil {
		t.Fatal("buy-in beyond the payer's balance should fail")
	}
	if got := balance(t, ctx, "p1"); got != 1000 {
		t.Errorf("p1 balance: got %d want 1000", got)
	}
	if tour.PrizePool != 0 {
		t.Errorf("prize pool: got %d want 0", tour.PrizePool)
	}
}

func TestDeadlineRefundsPayers(t *testing.T) {
	now := time.Now().UnixNano()
	ctx := newTestContext(t, now)
	eng := NewEngine(ctx)
	tour := seedTournament(t, ctx, core.TournamentOptions{
		NumberOfPlayers:      4,
		BuyIn:                250,
		RegistrationDeadline: now + int64(time.Hour),
		StartDelay:           30,
	}, "p1", "sponsor")

	// The sponsor pays for both seats.
	if err := eng.OnPlayerRegistered(tour, "sponsor", "p1"); err != nil {
		t.Fatal(err)
	}
	if err := eng.OnPlayerRegistered(tour, "sponsor", "p2"); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, ctx, "sponsor"); got != 500 {
		t.Fatalf("sponsor balance after paying: got %d want 500", got)
	}

	if err := eng.OnRegistrationDeadlinePassed(tour); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	if tour.State != core.StateRegistrationPeriodExpired {
		t.Errorf("state: got %s want %s", tour.State, core.StateRegistrationPeriodExpired)
	}
	if tour.PrizePool != 0 {
		t.Errorf("prize pool after refund: got %d want 0", tour.PrizePool)
	}
	if got := balance(t, ctx, "sponsor"); got != 1000 {
		t.Errorf("sponsor balance after refund: got %d want 1000", got)
	}
	details, _ := ctx.State.GetTournamentDetails(tour.DetailsID)
	if len(details.Payers) != 0 {
		t.Errorf("payers not drained: %v", details.Payers)
	}
}

func TestFullBracketFourPlayers(t *testing.T) {
	now := time.Now().UnixNano()
	ctx := newTestContext(t, now)
	eng := NewEngine(ctx)
	tour := seedTournament(t, ctx, core.TournamentOptions{
		NumberOfPlayers:      4,
		BuyIn:                100,
		RegistrationDeadline: now + int64(time.Hour),
		StartDelay:           1,
	}, "p1", "p2", "p3", "p4")

	for _, p := range []string{"p1", "p2", "p3", "p4"} {
		if err := eng.OnPlayerRegistered(tour, p, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := eng.OnStartTimeArrived(tour); err != nil {
		t.Fatalf("start: %v", err)
	}
	if tour.State != core.StateInProgress {
		t.Fatalf("state: got %s want %s", tour.State, core.StateInProgress)
	}

	details, err := ctx.State.GetTournamentDetails(tour.DetailsID)
	if err != nil {
		t.Fatal(err)
	}
	if len(details.Matches) != 3 {
		t.Fatalf("matches: got %d want 3", len(details.Matches))
	}

	// Both first-round matches run; the final waits on them.
	var firstRoundPlayers []string
	for _, id := range details.Matches[:2] {
		m, err := ctx.State.GetMatch(id)
		if err != nil {
			t.Fatal(err)
		}
		if m.State != core.MatchInProgress {
			t.Errorf("match %s state: got %s want %s", id, m.State, core.MatchInProgress)
		}
		if len(m.Players) != 2 {
			t.Errorf("match %s players: got %d want 2", id, len(m.Players))
		}
		firstRoundPlayers = append(firstRoundPlayers, m.Players...)
	}
	sort.Strings(firstRoundPlayers)
	if len(firstRoundPlayers) != 4 || firstRoundPlayers[0] != "p1" || firstRoundPlayers[3] != "p4" {
		t.Errorf("first round does not cover all players: %v", firstRoundPlayers)
	}
	final, _ := ctx.State.GetMatch(details.Matches[2])
	if final.State != core.MatchWaitingOnPreviousMatches {
		t.Errorf("final state: got %s want %s", final.State, core.MatchWaitingOnPreviousMatches)
	}

	// Nothing to advance while the first round is still playing.
	if err := eng.CheckForNewMatchesToStart(tour); err != nil {
		t.Fatal(err)
	}
	final, _ = ctx.State.GetMatch(details.Matches[2])
	if final.State != core.MatchWaitingOnPreviousMatches {
		t.Error("final started before the first round completed")
	}

	// First-round winners advance into the final.
	m0, _ := ctx.State.GetMatch(details.Matches[0])
	m1, _ := ctx.State.GetMatch(details.Matches[1])
	completeMatch(t, ctx, m0.ID, m0.Players[0])
	completeMatch(t, ctx, m1.ID, m1.Players[1])
	if err := eng.CheckForNewMatchesToStart(tour); err != nil {
		t.Fatal(err)
	}
	final, _ = ctx.State.GetMatch(details.Matches[2])
	if final.State != core.MatchInProgress {
		t.Fatalf("final state after advance: got %s", final.State)
	}
	if len(final.Players) != 2 || final.Players[0] != m0.Players[0] || final.Players[1] != m1.Players[1] {
		t.Errorf("final players: got %v", final.Players)
	}

	// A second scan with no new completions must change nothing.
	rootBefore := ctx.State.ComputeRoot()
	if err := eng.CheckForNewMatchesToStart(tour); err != nil {
		t.Fatal(err)
	}
	if root := ctx.State.ComputeRoot(); root != rootBefore {
		t.Error("progression scan is not idempotent")
	}

	// Decide the final and conclude.
	winner := final.Players[0]
	completeMatch(t, ctx, final.ID, winner)
	if err := eng.OnFinalGameCompleted(tour); err != nil {
		t.Fatalf("conclude: %v", err)
	}
	if tour.State != core.StateConcluded {
		t.Errorf("state: got %s want %s", tour.State, core.StateConcluded)
	}
	if tour.EndTime != now {
		t.Errorf("end time: got %d want %d", tour.EndTime, now)
	}
	// Winner paid 100 in and takes the 400 pool.
	if got := balance(t, ctx, winner); got != 1300 {
		t.Errorf("winner balance: got %d want 1300", got)
	}
}

func TestByeAdvancesAlone(t *testing.T) {
	now := time.Now().UnixNano()
	ctx := newTestContext(t, now)
	eng := NewEngine(ctx)
	tour := seedTournament(t, ctx, core.TournamentOptions{
		NumberOfPlayers:      3,
		BuyIn:                10,
		RegistrationDeadline: now + int64(time.Hour),
		StartDelay:           1,
	}, "p1", "p2", "p3")

	for _, p := range []string{"p1", "p2", "p3"} {
		if err := eng.OnPlayerRegistered(tour, p, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := eng.OnStartTimeArrived(tour); err != nil {
		t.Fatal(err)
	}

	details, _ := ctx.State.GetTournamentDetails(tour.DetailsID)
	if len(details.Matches) != 3 {
		t.Fatalf("matches: got %d want 3", len(details.Matches))
	}

	// One first-round match is a bye and completes on the spot; the other has
	// two players.
	var byeMatch, played *core.Match
	for _, id := range details.Matches[:2] {
		m, _ := ctx.State.GetMatch(id)
		switch len(m.Players) {
		case 1:
			byeMatch = m
		case 2:
			played = m
		default:
			t.Fatalf("match %s has %d players", id, len(m.Players))
		}
	}
	if byeMatch == nil || played == nil {
		t.Fatal("expected one bye match and one two-player match")
	}
	if byeMatch.State != core.MatchComplete {
		t.Errorf("bye match state: got %s want %s", byeMatch.State, core.MatchComplete)
	}
	if len(byeMatch.Winners) != 1 || byeMatch.Winners[0] != byeMatch.Players[0] {
		t.Errorf("bye winners: got %v", byeMatch.Winners)
	}

	// Once the played match is decided both winners enter the final.
	completeMatch(t, ctx, played.ID, played.Players[0])
	if err := eng.CheckForNewMatchesToStart(tour); err != nil {
		t.Fatal(err)
	}
	final, _ := ctx.State.GetMatch(details.Matches[2])
	if final.State != core.MatchInProgress {
		t.Fatalf("final state: got %s", final.State)
	}
	if len(final.Players) != 2 {
		t.Fatalf("final players: got %v", final.Players)
	}
}
