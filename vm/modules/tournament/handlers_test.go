package tournament

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/soltak/tourchain/core"
	"github.com/soltak/tourchain/crypto"
)

func testPubKeyHex(t *testing.T) string {
	t.Helper()
	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	return pub.Hex()
}

func TestValidateOptionsRejections(t *testing.T) {
	now := time.Now().UnixNano()
	member := testPubKeyHex(t)
	good := core.TournamentOptions{
		NumberOfPlayers:      2,
		BuyIn:                100,
		RegistrationDeadline: now + int64(time.Hour),
		StartDelay:           30,
	}

	cases := []struct {
		name   string
		mutate func(*core.TournamentOptions)
		want   string // "" means valid
	}{
		{"valid", func(o *core.TournamentOptions) {}, ""},
		{"valid whitelist", func(o *core.TournamentOptions) {
			o.Whitelist = []string{member, testPubKeyHex(t)}
		}, ""},
		{"too few players", func(o *core.TournamentOptions) {
			o.NumberOfPlayers = 1
		}, "number_of_players"},
		{"zero buy-in", func(o *core.TournamentOptions) {
			o.BuyIn = 0
		}, "buy_in"},
		{"oversized buy-in", func(o *core.TournamentOptions) {
			o.BuyIn = 1<<63 + 100
		}, "buy_in"},
		{"prize pool overflow", func(o *core.TournamentOptions) {
			o.NumberOfPlayers = 4
			o.BuyIn = math.MaxInt64/4 + 1
		}, "buy_in"},
		{"past deadline", func(o *core.TournamentOptions) {
			o.RegistrationDeadline = now - 1
		}, "registration_deadline"},
		{"both start fields", func(o *core.TournamentOptions) {
			o.StartTime = o.RegistrationDeadline + 1
		}, "start_time and start_delay"},
		{"neither start field", func(o *core.TournamentOptions) {
			o.StartDelay = 0
		}, "start_time and start_delay"},
		{"negative start delay", func(o *core.TournamentOptions) {
			o.StartDelay = -5
		}, "start_delay"},
		{"start before deadline", func(o *core.TournamentOptions) {
			o.StartDelay = 0
			o.StartTime = o.RegistrationDeadline - 1
		}, "start_time"},
		{"short whitelist", func(o *core.TournamentOptions) {
			o.Whitelist = []string{member}
		}, "whitelist"},
		{"malformed whitelist entry", func(o *core.TournamentOptions) {
			o.Whitelist = []string{member, "not-a-pubkey"}
		}, "whitelist"},
		{"duplicate whitelist entry", func(o *core.TournamentOptions) {
			o.Whitelist = []string{member, member}
		}, "whitelist"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := good
			tc.mutate(&opts)
			err := validateOptions(&opts, now)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("valid options rejected: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestJoinEnforcesWhitelist(t *testing.T) {
	now := time.Now().UnixNano()
	ctx := newTestContext(t, now)
	insider := testPubKeyHex(t)
	outsider := testPubKeyHex(t)
	tour := seedTournament(t, ctx, core.TournamentOptions{
		NumberOfPlayers:      2,
		BuyIn:                100,
		RegistrationDeadline: now + int64(time.Hour),
		StartDelay:           30,
		Whitelist:            []string{insider, testPubKeyHex(t)},
	}, insider, outsider)
	ctx.Tx = &core.Transaction{ID: "tx-join", From: outsider}

	join := func(player string) error {
		payload, err := json.Marshal(core.TournamentJoinPayload{
			TournamentID: tour.ID,
			Player:       player,
		})
		if err != nil {
			t.Fatal(err)
		}
		return handleTournamentJoin(ctx, payload)
	}

	if err := join(outsider); err == nil {
		t.Error("player outside the whitelist should be refused")
	}
	if got := balance(t, ctx, outsider); got != 1000 {
		t.Errorf("refused join debited the payer: balance %d", got)
	}
	if err := join(insider); err != nil {
		t.Errorf("whitelisted player refused: %v", err)
	}
	if got := balance(t, ctx, outsider); got != 900 {
		t.Errorf("payer balance after join: got %d want 900", got)
	}
}
