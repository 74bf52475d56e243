// Package tournament implements the single-elimination tournament engine:
// registration, seeded bracket construction, match progression, and prize
// accounting, driven entirely by ledger transactions and per-block
// housekeeping so that every node derives identical state.
package tournament

import (
	"math/bits"

	"github.com/soltak/tourchain/crypto"
)

// numRounds returns the minimum R such that 2^R >= n.
func numRounds(n uint32) uint32 {
	return uint32(bits.Len32(n-1)) // position of MSB of (n-1), plus one
}

// numMatches returns the size of the full bracket tree for R rounds.
func numMatches(rounds uint32) uint32 {
	return (1 << rounds) - 1
}

// matchesInRound returns how many matches round r holds. Round 0 is the
// first round (leaves); the last round holds exactly one match.
func matchesInRound(rounds, r uint32) uint32 {
	return 1 << (rounds - r - 1)
}

// firstMatchInRound returns the flat tree index of round r's first match.
// The tree is packed leaves-first: round 0 occupies the lowest indices and
// the final match is the single highest index.
func firstMatchInRound(total, r uint32) uint32 {
	return total - (total >> r)
}

// childIndices returns the flat indices of the two matches feeding match m
// in a tree of total matches. Only valid for matches past the first round.
func childIndices(total, m uint32) (left, right uint32) {
	left = (total - 1) - ((total-1-m)*2 + 2)
	return left, left + 1
}

// reverseBits reverses the bits of a 32-bit integer.
func reverseBits(x uint32) uint32 {
	x = ((x & 0xaaaaaaaa) >> 1) | ((x & 0x55555555) << 1)
	x = ((x & 0xcccccccc) >> 2) | ((x & 0x33333333) << 2)
	x = ((x & 0xf0f0f0f0) >> 4) | ((x & 0x0f0f0f0f) << 4)
	x = ((x & 0xff00ff00) >> 8) | ((x & 0x00ff00ff) << 8)
	return (x >> 16) | (x << 16)
}

// bracketPosition maps the player's seed order to a first-round slot via
// Gray-code bit-reversal. This yields the conventional pattern where seed 1
// meets seed N only in the final, and byes land opposite the top seeds.
// The reversal is 32-bit wide regardless of bracket size; the unused low
// bits are shifted away.
func bracketPosition(playerNum, rounds uint32) uint32 {
	return reverseBits(playerNum^(playerNum>>1)) >> (32 - rounds)
}

// seedBracket shuffles the registered players with the block randomness and
// lays them into first-round slots. The returned slice has 2^rounds entries;
// slots with no player keep the bye sentinel (empty string). registered must
// already be in its canonical sorted order: every node shuffles the same
// input with the same seed, so every node gets the same layout.
func seedBracket(registered []string, seed []byte, rounds uint32) []string {
	seeded := make([]string, len(registered))
	copy(seeded, registered)
	crypto.NewHashRNG(seed).Shuffle(seeded)

	paired := make([]string, 1<<rounds)
	for num := uint32(0); num < uint32(len(seeded)); num++ {
		paired[bracketPosition(num, rounds)] = seeded[num]
	}
	return paired
}
