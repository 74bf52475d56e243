// Package indexer maintains secondary indexes over committed tournament
// events so clients can find the tournaments an account is involved in
// without scanning full state. This is the fan-out side of the chain: the
// engine stays pure and emits events, the indexer decides what to do with
// the account-relevant ones.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soltak/tourchain/core"
	"github.com/soltak/tourchain/events"
	"github.com/soltak/tourchain/storage"
)

const (
	prefixPlayerTournaments  = "idx:player:tour:"
	prefixCreatorTournaments = "idx:creator:tour:"
)

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventTournamentCreated, idx.onTournamentCreated)
	emitter.Subscribe(events.EventPlayerRegistered, idx.onPlayerRegistered)
	return idx
}

// GetTournamentsByPlayer returns the IDs of tournaments the account is
// registered in.
func (idx *Indexer) GetTournamentsByPlayer(player string) ([]string, error) {
	return idx.getList(prefixPlayerTournaments + player)
}

// GetTournamentsByCreator returns the IDs of tournaments the account created.
func (idx *Indexer) GetTournamentsByCreator(creator string) ([]string, error) {
	return idx.getList(prefixCreatorTournaments + creator)
}

// ---- event handlers ----

func (idx *Indexer) onTournamentCreated(ev events.Event) {
	creator, _ := ev.Data["creator"].(string)
	tournamentID, _ := ev.Data["tournament_id"].(string)
	if creator == "" || tournamentID == "" {
		return
	}
	_ = idx.addToList(prefixCreatorTournaments+creator, tournamentID)
}

func (idx *Indexer) onPlayerRegistered(ev events.Event) {
	player, _ := ev.Data["player"].(string)
	tournamentID, _ := ev.Data["tournament_id"].(string)
	if player == "" || tournamentID == "" {
		return
	}
	_ = idx.addToList(prefixPlayerTournaments+player, tournamentID)
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key, value string) error {
	ids, _ := idx.getList(key)
	for _, id := range ids {
		if id == value {
			return nil
		}
	}
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
