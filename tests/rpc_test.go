package tests

import (
	"encoding/json"
	"testing"

	"github.com/soltak/tourchain/core"
	"github.com/soltak/tourchain/events"
	"github.com/soltak/tourchain/indexer"
	"github.com/soltak/tourchain/internal/testutil"
	"github.com/soltak/tourchain/rpc"
	"github.com/soltak/tourchain/storage"
	"github.com/soltak/tourchain/wallet"
)

// newTestRPCHandler builds an RPC handler backed by in-memory state.
func newTestRPCHandler(t *testing.T) (*rpc.Handler, core.State) {
	t.Helper()
	db := testutil.NewMemDB()
	state := storage.NewStateDB(db)
	blockStore := testutil.NewMemBlockStore()
	bc := core.NewBlockchain(blockStore)
	mp := core.NewMempool()
	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	return rpc.NewHandler(bc, mp, state, idx, vmChainID), state
}

func dispatch(handler *rpc.Handler, method string, params any) rpc.Response {
	raw, _ := json.Marshal(params)
	return handler.Dispatch(rpc.Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  raw,
	})
}

// TestRPCGetBlockHeight verifies that getBlockHeight returns 0 for a fresh chain.
func TestRPCGetBlockHeight(t *testing.T) {
	handler, _ := newTestRPCHandler(t)
	resp := dispatch(handler, "getBlockHeight", struct{}{})
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	// Dispatch is called directly (no HTTP round-trip), so result is int64, not float64.
	var height int64
	switch v := resp.Result.(type) {
	case int64:
		height = v
	case float64:
		height = int64(v)
	default:
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	if height != 0 {
		t.Errorf("height: got %d want 0", height)
	}
}

// TestRPCGetBalance verifies getBalance returns zero for an unknown account.
func TestRPCGetBalance(t *testing.T) {
	handler, _ := newTestRPCHandler(t)
	resp := dispatch(handler, "getBalance", map[string]string{"address": "nonexistent"})
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	balance, _ := result["balance"].(uint64)
	if balance != 0 {
		t.Errorf("balance: got %v want 0", balance)
	}
}

// TestRPCGetTournament verifies that tournament records round-trip through the
// query surface, state tag included.
func TestRPCGetTournament(t *testing.T) {
	handler, state := newTestRPCHandler(t)

	tour := &core.Tournament{
		ID:        "tour-1",
		Creator:   "someone",
		Options:   core.TournamentOptions{NumberOfPlayers: 8, BuyIn: 50},
		DetailsID: "tour-1-details",
		State:     core.StateAcceptingRegistrations,
	}
	if err := state.SetTournament(tour); err != nil {
		t.Fatal(err)
	}

	resp := dispatch(handler, "getTournament", map[string]string{"id": "tour-1"})
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	got, ok := resp.Result.(*core.Tournament)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	if got.State != core.StateAcceptingRegistrations {
		t.Errorf("state: got %s want %s", got.State, core.StateAcceptingRegistrations)
	}
	if got.Options.NumberOfPlayers != 8 {
		t.Errorf("players: got %d want 8", got.Options.NumberOfPlayers)
	}

	// Unknown ID is an error, not an empty record.
	resp = dispatch(handler, "getTournament", map[string]string{"id": "missing"})
	if resp.Error == nil {
		t.Error("expected error for unknown tournament")
	}
}

// TestRPCSendTxChainID verifies cross-chain transactions are rejected at the
// RPC boundary.
func TestRPCSendTxChainID(t *testing.T) {
	handler, _ := newTestRPCHandler(t)
	w, _ := wallet.Generate()

	good, _ := w.Transfer(vmChainID, "deadbeef", 1, 0, 0)
	var params json.RawMessage
	params, _ = json.Marshal(good)
	resp := handler.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: "sendTx", Params: params})
	if resp.Error != nil {
		t.Fatalf("same-chain tx rejected: %v", resp.Error.Message)
	}

	bad, _ := w.Transfer("other-chain", "deadbeef", 1, 1, 0)
	params, _ = json.Marshal(bad)
	resp = handler.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 2, Method: "sendTx", Params: params})
	if resp.Error == nil {
		t.Error("cross-chain tx should be rejected")
	}
}

// TestRPCGetMempoolSize verifies getMempoolSize returns 0 for an empty mempool.
func TestRPCGetMempoolSize(t *testing.T) {
	handler, _ := newTestRPCHandler(t)
	resp := dispatch(handler, "getMempoolSize", struct{}{})
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	size, ok := resp.Result.(int)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	if size != 0 {
		t.Errorf("mempool size: got %d want 0", size)
	}
}

// TestRPCMethodNotFound verifies that unknown methods return a -32601 error.
func TestRPCMethodNotFound(t *testing.T) {
	handler, _ := newTestRPCHandler(t)
	resp := dispatch(handler, "nonExistentMethod", struct{}{})
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != rpc.CodeMethodNotFound {
		t.Errorf("error code: got %d want %d", resp.Error.Code, rpc.CodeMethodNotFound)
	}
}
