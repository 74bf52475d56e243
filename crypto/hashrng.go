package crypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// HashRNG is a counter-mode deterministic random sequence seeded with the
// chain-wide per-block randomness. Draw k reads the first 8 bytes of
// SHA-256(seed || counter) big-endian and increments the counter, so two
// nodes holding the same seed produce bit-identical sequences. Consensus
// code must never substitute anything non-deterministic for this.
type HashRNG struct {
	seed    []byte
	counter uint64
}

// NewHashRNG creates a HashRNG over the given seed bytes.
func NewHashRNG(seed []byte) *HashRNG {
	s := make([]byte, len(seed))
	copy(s, seed)
	return &HashRNG{seed: s}
}

// Uint64 returns the next value in the sequence.
func (r *HashRNG) Uint64() uint64 {
	buf := make([]byte, len(r.seed)+8)
	copy(buf, r.seed)
	binary.BigEndian.PutUint64(buf[len(r.seed):], r.counter)
	r.counter++
	h := sha256.Sum256(buf)
	return binary.BigEndian.Uint64(h[:8])
}

// UintN returns a value in [0, n). The modulo bias is irrelevant here: the
// draw only has to be identical across nodes, not statistically perfect.
func (r *HashRNG) UintN(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return r.Uint64() % n
}

// Shuffle applies a Fisher-Yates shuffle to players in place, from the last
// element down to the second, drawing each swap index from the sequence.
func (r *HashRNG) Shuffle(players []string) {
	for i := len(players) - 1; i >= 1; i-- {
		j := int(r.UintN(uint64(i + 1)))
		players[i], players[j] = players[j], players[i]
	}
}
