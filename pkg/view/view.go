// Package view derives the user-facing replay sequence from the event
// store: the previously-unseen events in a deterministic total order,
// suitable for feeding to a presentation layer.
package view

import (
	"bytes"
	"sort"
	"sync"

	"github.com/narodnik/mvc-ircd/pkg/dag"
	"github.com/narodnik/mvc-ircd/pkg/types"
)

// View tracks which events have already been replayed to one consumer.
// Replay order is fixed as (timestamp, event id) ascending: monotonic with
// respect to timestamps and reproducible from DAG contents alone, whatever
// order the events arrived in.
type View struct {
	mu   sync.Mutex
	seen map[types.Hash]struct{}
}

func New() *View {
	return &View{
		seen: make(map[types.Hash]struct{}),
	}
}

type replayEntry struct {
	id    types.Hash
	event types.Event
}

// Process walks all chains from the current root and returns the events
// this view has not replayed yet, ordered for replay. The synthetic genesis
// event is infrastructure, not a message, and is never replayed. No event
// is ever returned twice by the same View.
func (v *View) Process(store *dag.Store) []types.Event {
	v.mu.Lock()
	defer v.mu.Unlock()

	var unseen []replayEntry

	stack := []*dag.Node{store.Root()}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, node.Children()...)

		if node.Event().PreviousEventHash.IsZero() {
			continue
		}
		if _, ok := v.seen[node.ID()]; ok {
			continue
		}

		unseen = append(unseen, replayEntry{id: node.ID(), event: node.Event()})
	}

	sort.Slice(unseen, func(i, j int) bool {
		if unseen[i].event.Timestamp != unseen[j].event.Timestamp {
			return unseen[i].event.Timestamp < unseen[j].event.Timestamp
		}
		return bytes.Compare(unseen[i].id.Bytes(), unseen[j].id.Bytes()) < 0
	})

	events := make([]types.Event, len(unseen))
	for i, entry := range unseen {
		v.seen[entry.id] = struct{}{}
		events[i] = entry.event
	}
	return events
}
