package storage

import (
	"strings"
	"sync"
	"testing"

	"github.com/soltak/tourchain/core"
)

// memDB is a minimal in-memory DB for this package's tests. It mirrors the
// behaviour of the LevelDB wrapper without touching disk. (internal/testutil
// imports this package, so the shared helper cannot be used here.)
type memDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemDB() *memDB { return &memDB{data: make(map[string][]byte)} }

func (m *memDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return v, nil
}

func (m *memDB) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = value
	return nil
}

func (m *memDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *memDB) NewIterator(prefix []byte) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var pairs [][2][]byte
	for k, v := range m.data {
		if strings.HasPrefix(k, string(prefix)) {
			pairs = append(pairs, [2][]byte{[]byte(k), v})
		}
	}
	return &memIter{pairs: pairs, idx: -1}
}

func (m *memDB) NewBatch() Batch { return &memBatch{db: m} }

func (m *memDB) Close() error { return nil }

type memIter struct {
	pairs [][2][]byte
	idx   int
}

func (it *memIter) Next() bool    { it.idx++; return it.idx < len(it.pairs) }
func (it *memIter) Key() []byte   { return it.pairs[it.idx][0] }
func (it *memIter) Value() []byte { return it.pairs[it.idx][1] }
func (it *memIter) Release()      {}
func (it *memIter) Error() error  { return nil }

type memBatch struct {
	db  *memDB
	ops []func()
}

func (b *memBatch) Set(key, value []byte) {
	k, v := string(key), append([]byte(nil), value...)
	b.ops = append(b.ops, func() { b.db.data[k] = v })
}

func (b *memBatch) Delete(key []byte) {
	k := string(key)
	b.ops = append(b.ops, func() { delete(b.db.data, k) })
}

func (b *memBatch) Reset() { b.ops = nil }

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		op()
	}
	return nil
}

func TestAccountZeroValue(t *testing.T) {
	s := NewStateDB(newMemDB())
	acc, err := s.GetAccount("nobody")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Balance != 0 || acc.Nonce != 0 {
		t.Errorf("fresh account should be zero-valued: %+v", acc)
	}
}

func TestSnapshotRevert(t *testing.T) {
	s := NewStateDB(newMemDB())
	_ = s.SetAccount(&core.Account{Address: "a", Balance: 100})

	id, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	_ = s.SetAccount(&core.Account{Address: "a", Balance: 5})
	_ = s.SetTournament(&core.Tournament{ID: "t1", State: core.StateAcceptingRegistrations})

	if err := s.RevertToSnapshot(id); err != nil {
		t.Fatalf("revert: %v", err)
	}
	acc, _ := s.GetAccount("a")
	if acc.Balance != 100 {
		t.Errorf("balance after revert: got %d want 100", acc.Balance)
	}
	if _, err := s.GetTournament("t1"); err == nil {
		t.Error("tournament written after snapshot should be gone")
	}
}

// TestTournamentIDsSortedMerge checks that committed and uncommitted
// tournaments come back as one sorted list. Block housekeeping iterates this
// list, so the order is consensus-critical.
func TestTournamentIDsSortedMerge(t *testing.T) {
	s := NewStateDB(newMemDB())
	_ = s.SetTournament(&core.Tournament{ID: "ccc"})
	_ = s.SetTournament(&core.Tournament{ID: "aaa"})
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	_ = s.SetTournament(&core.Tournament{ID: "bbb"})

	ids, err := s.TournamentIDs()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"aaa", "bbb", "ccc"}
	if len(ids) != len(want) {
		t.Fatalf("ids: got %v want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids: got %v want %v", ids, want)
		}
	}
}

// TestComputeRootOrderIndependent writes the same records in different orders
// into two stores and expects identical roots.
func TestComputeRootOrderIndependent(t *testing.T) {
	a := NewStateDB(newMemDB())
	b := NewStateDB(newMemDB())

	accounts := []*core.Account{
		{Address: "p1", Balance: 10},
		{Address: "p2", Balance: 20},
		{Address: "p3", Balance: 30},
	}
	for _, acc := range accounts {
		_ = a.SetAccount(acc)
	}
	for i := len(accounts) - 1; i >= 0; i-- {
		_ = b.SetAccount(accounts[i])
	}
	_ = a.SetMatch(&core.Match{ID: "m1", State: core.MatchInProgress})
	_ = b.SetMatch(&core.Match{ID: "m1", State: core.MatchInProgress})

	if ra, rb := a.ComputeRoot(), b.ComputeRoot(); ra != rb {
		t.Errorf("roots differ: %s vs %s", ra, rb)
	}
}

// TestComputeRootStableAcrossCommit: flushing the write buffer must not
// change the root, only where the data lives.
func TestComputeRootStableAcrossCommit(t *testing.T) {
	s := NewStateDB(newMemDB())
	_ = s.SetAccount(&core.Account{Address: "p1", Balance: 42})
	_ = s.SetTournament(&core.Tournament{ID: "t1", State: core.StateInProgress})

	before := s.ComputeRoot()
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	if after := s.ComputeRoot(); after != before {
		t.Errorf("root changed across commit: %s vs %s", before, after)
	}
}
