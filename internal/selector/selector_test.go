package selector

import (
	"math/rand"
	"testing"
)

func TestSelect_ListIsStickyAtEnd(t *testing.T) {
	ids := []string{"a", "b"}
	visited := VisitedTable{}
	rng := rand.New(rand.NewSource(1))

	var got []string
	for i := 0; i < 4; i++ {
		idx, ok := Select(List, ids, visited, rng)
		if !ok {
			t.Fatalf("step %d: expected selection", i)
		}
		got = append(got, ids[idx])
	}
	want := []string{"a", "b", "b", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: got %q, want %q (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestSelect_LoopWrapsTwoElementsOverFourSteps(t *testing.T) {
	ids := []string{"A", "B"}
	visited := VisitedTable{}
	rng := rand.New(rand.NewSource(1))

	var got []string
	for i := 0; i < 4; i++ {
		idx, _ := Select(Loop, ids, visited, rng)
		got = append(got, ids[idx])
	}
	want := []string{"A", "B", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSelect_SmartRandomCoversAllBeforeRepeat(t *testing.T) {
	ids := []string{"a", "b", "c"}
	visited := VisitedTable{}
	rng := rand.New(rand.NewSource(7))

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		idx, _ := Select(SmartRandom, ids, visited, rng)
		seen[ids[idx]] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected all 3 elements visited within one cycle, got %v", seen)
	}
}

func TestSelect_EmptyIDsFails(t *testing.T) {
	if _, ok := Select(List, nil, VisitedTable{}, rand.New(rand.NewSource(1))); ok {
		t.Error("expected ok=false for empty candidate list")
	}
}

func TestSelect_RandomStaysWithinBounds(t *testing.T) {
	ids := []string{"a", "b", "c"}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		idx, ok := Select(Random, ids, VisitedTable{}, rng)
		if !ok || idx < 0 || idx >= len(ids) {
			t.Fatalf("index %d out of bounds", idx)
		}
	}
}
