package core

// Account holds a participant's token balance and replay-protection nonce.
// Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// TournamentState tags the tournament's position in its lifecycle.
// The tag is driven exclusively by the transition table in
// vm/modules/tournament; nothing else may write it.
type TournamentState string

const (
	StateAcceptingRegistrations    TournamentState = "accepting_registrations"
	StateAwaitingStart             TournamentState = "awaiting_start"
	StateInProgress                TournamentState = "in_progress"
	StateRegistrationPeriodExpired TournamentState = "registration_period_expired"
	StateConcluded                 TournamentState = "concluded"
)

// MatchState tags a match's progress through the bracket.
type MatchState string

const (
	MatchWaitingOnPreviousMatches MatchState = "waiting_on_previous_matches"
	MatchInProgress               MatchState = "in_progress"
	MatchComplete                 MatchState = "match_complete"
)

// ByeAccount is the zero-value account identifier used as the "no opponent"
// sentinel in first-round seeding. An empty player is rejected at the
// payload-validation boundary, so the sentinel never collides with a real
// registrant.
const ByeAccount = ""

// TournamentOptions is the immutable configuration supplied at creation.
// Exactly one of StartTime / StartDelay must be set.
type TournamentOptions struct {
	NumberOfPlayers      uint32   `json:"number_of_players"`
	BuyIn                uint64   `json:"buy_in"` // native tokens per seat
	RegistrationDeadline int64    `json:"registration_deadline"`
	StartTime            int64    `json:"start_time,omitempty"`  // absolute, UnixNano
	StartDelay           int64    `json:"start_delay,omitempty"` // seconds after the bracket fills
	Whitelist            []string `json:"whitelist,omitempty"`
}

// Tournament is the summary record: everything needed to show an overview.
// RegisteredPlayers caches the size of the details object's player set so
// readers do not have to fetch the details record.
type Tournament struct {
	ID                string            `json:"id"`
	Creator           string            `json:"creator"`
	Options           TournamentOptions `json:"options"`
	StartTime         int64             `json:"start_time,omitempty"` // 0 until scheduled
	EndTime           int64             `json:"end_time,omitempty"`   // 0 until concluded
	PrizePool         uint64            `json:"prize_pool"`
	RegisteredPlayers uint32            `json:"registered_players"`
	DetailsID         string            `json:"details_id"`
	State             TournamentState   `json:"state"`
}

// TournamentDetails carries the bulky per-tournament data.
// RegisteredPlayers is kept sorted ascending; the seeding shuffle consumes
// it in that order, so insertion order must never leak into it.
type TournamentDetails struct {
	ID                string            `json:"id"`
	TournamentID      string            `json:"tournament_id"`
	RegisteredPlayers []string          `json:"registered_players"`
	Payers            map[string]uint64 `json:"payers"`  // account → contribution
	Matches           []string          `json:"matches"` // flat complete binary tree, 2^R - 1 IDs
}

// Match is one node of the bracket tree. Players holds 0, 1, or 2 accounts:
// one means a bye, zero means not yet determined. Reports collects each
// participant's claimed winner until all participants agree.
type Match struct {
	ID           string            `json:"id"`
	TournamentID string            `json:"tournament_id"`
	Players      []string          `json:"players"`
	StartTime    int64             `json:"start_time,omitempty"`
	EndTime      int64             `json:"end_time,omitempty"`
	Winners      []string          `json:"winners,omitempty"` // at most one once decided
	Reports      map[string]string `json:"reports,omitempty"` // player → claimed winner
	State        MatchState        `json:"state"`
}

// State is the full blockchain state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Tournaments
	GetTournament(id string) (*Tournament, error)
	SetTournament(t *Tournament) error
	// TournamentIDs returns every tournament ID, committed or dirty,
	// sorted ascending. Per-block housekeeping iterates this list, so the
	// order must be identical on every node.
	TournamentIDs() ([]string, error)

	// Tournament details
	GetTournamentDetails(id string) (*TournamentDetails, error)
	SetTournamentDetails(d *TournamentDetails) error

	// Matches
	GetMatch(id string) (*Match, error)
	SetMatch(m *Match) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the block header.
	Commit() error
}
