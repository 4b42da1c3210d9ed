package domain

import "slices"

type transitionTable[T comparable] struct {
	next  map[T][]T
	order []T
}

func newTransitionTable[T comparable]() *transitionTable[T] {
	return &transitionTable[T]{next: make(map[T][]T)}
}

// Allow registers the states reachable from from.
func (t *transitionTable[T]) Allow(from T, to ...T) *transitionTable[T] {
	if _, ok := t.next[from]; !ok {
		t.order = append(t.order, from)
	}
	for _, target := range to {
		if !slices.Contains(t.next[from], target) {
			t.next[from] = append(t.next[from], target)
		}
	}
	return t
}

func (t *transitionTable[T]) Allowed(from, to T) bool {
	return slices.Contains(t.next[from], to)
}

// Sources lists the states that may move to to, in the order they were registered.
func (t *transitionTable[T]) Sources(to T) []T {
	var out []T
	for _, from := range t.order {
		if slices.Contains(t.next[from], to) {
			out = append(out, from)
		}
	}
	return out
}
