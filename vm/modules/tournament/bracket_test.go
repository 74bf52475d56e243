package tournament

import (
	"sort"
	"testing"
)

func TestNumRounds(t *testing.T) {
	cases := []struct {
		players uint32
		want    uint32
	}{
		{2, 1}, {3, 2}, {4, 2}, {5, 3}, {8, 3}, {9, 4}, {16, 4}, {17, 5}, {256, 8},
	}
	for _, c := range cases {
		if got := numRounds(c.players); got != c.want {
			t.Errorf("numRounds(%d): got %d want %d", c.players, got, c.want)
		}
	}
}

// TestRoundLayout checks that the per-round slices tile the flat tree exactly,
// from the leaves at index 0 up to the single final at the top.
func TestRoundLayout(t *testing.T) {
	for _, rounds := range []uint32{1, 2, 3, 4, 5} {
		total := numMatches(rounds)
		next := uint32(0)
		for r := uint32(0); r < rounds; r++ {
			first := firstMatchInRound(total, r)
			if first != next {
				t.Fatalf("rounds=%d r=%d: firstMatchInRound=%d want %d", rounds, r, first, next)
			}
			next += matchesInRound(rounds, r)
		}
		if next != total {
			t.Fatalf("rounds=%d: rounds tile %d matches, tree has %d", rounds, next, total)
		}
		if matchesInRound(rounds, rounds-1) != 1 {
			t.Fatalf("rounds=%d: final round should hold exactly one match", rounds)
		}
	}
}

// TestChildIndices checks that every match past the first round is fed by the
// two expected matches of the previous round, in order.
func TestChildIndices(t *testing.T) {
	for _, rounds := range []uint32{2, 3, 4} {
		total := numMatches(rounds)
		for r := uint32(1); r < rounds; r++ {
			first := firstMatchInRound(total, r)
			prevFirst := firstMatchInRound(total, r-1)
			for i := uint32(0); i < matchesInRound(rounds, r); i++ {
				left, right := childIndices(total, first+i)
				if left != prevFirst+2*i || right != left+1 {
					t.Errorf("rounds=%d match=%d: children (%d,%d) want (%d,%d)",
						rounds, first+i, left, right, prevFirst+2*i, prevFirst+2*i+1)
				}
			}
		}
	}
}

// TestBracketPositionBijective: the seed-to-slot mapping must assign every
// slot exactly once, otherwise two players would land in the same slot.
func TestBracketPositionBijective(t *testing.T) {
	for _, rounds := range []uint32{1, 2, 3, 4, 5} {
		slots := uint32(1) << rounds
		seen := make(map[uint32]uint32, slots)
		for num := uint32(0); num < slots; num++ {
			pos := bracketPosition(num, rounds)
			if pos >= slots {
				t.Fatalf("rounds=%d num=%d: slot %d out of range", rounds, num, pos)
			}
			if prev, dup := seen[pos]; dup {
				t.Fatalf("rounds=%d: seeds %d and %d collide at slot %d", rounds, prev, num, pos)
			}
			seen[pos] = num
		}
	}
}

// TestBracketPositionTopSeeds: the top two seed positions must end up in
// opposite halves of the bracket so they can only meet in the final.
func TestBracketPositionTopSeeds(t *testing.T) {
	for _, rounds := range []uint32{2, 3, 4} {
		half := uint32(1) << (rounds - 1)
		p0 := bracketPosition(0, rounds)
		p1 := bracketPosition(1, rounds)
		if (p0 < half) == (p1 < half) {
			t.Errorf("rounds=%d: seeds 0 and 1 in the same half (slots %d, %d)", rounds, p0, p1)
		}
	}
}

func TestSeedBracket(t *testing.T) {
	registered := []string{"alice", "bob", "carol", "dave", "erin"}
	rounds := numRounds(uint32(len(registered))) // 3 → 8 slots
	seed := []byte("some-block-random")

	paired := seedBracket(registered, seed, rounds)
	if len(paired) != 8 {
		t.Fatalf("slot count: got %d want 8", len(paired))
	}

	var placed []string
	byes := 0
	for _, p := range paired {
		if p == "" {
			byes++
			continue
		}
		placed = append(placed, p)
	}
	if byes != 3 {
		t.Errorf("byes: got %d want 3", byes)
	}
	sort.Strings(placed)
	for i, want := range registered {
		if placed[i] != want {
			t.Fatalf("placed players %v do not match registered %v", placed, registered)
		}
	}

	// Same inputs, same layout.
	again := seedBracket(registered, seed, rounds)
	for i := range paired {
		if paired[i] != again[i] {
			t.Fatalf("seeding not deterministic at slot %d", i)
		}
	}

	// The input must not be mutated; the details record keeps its sorted order.
	if registered[0] != "alice" || registered[4] != "erin" {
		t.Error("seedBracket mutated its input")
	}
}
