package dag_test

import (
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narodnik/mvc-ircd/pkg/dag"
	"github.com/narodnik/mvc-ircd/pkg/encoding"
	"github.com/narodnik/mvc-ircd/pkg/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func newTestStore(t *testing.T, config dag.StoreConfig) *dag.Store {
	t.Helper()
	if config.Logger == nil {
		config.Logger = testLogger()
	}

	store, err := dag.NewStore(config)
	require.NoError(t, err)
	return store
}

func message(parent types.Hash, nick, msg string, ts types.Timestamp) types.Event {
	return types.Event{
		PreviousEventHash: parent,
		Action:            types.PrivMsg{Nick: nick, Msg: msg},
		Timestamp:         ts,
	}
}

func hashOf(t *testing.T, event types.Event) types.Hash {
	t.Helper()
	id, err := encoding.HashEvent(event)
	require.NoError(t, err)
	return id
}

func TestNewStore_HeadEqualsRoot(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})

	root := store.Root()
	head := store.Head()

	assert.Equal(t, root.ID(), head.ID())
	assert.Equal(t, store.CurrentRoot(), root.ID())
	assert.Nil(t, root.Parent())
	assert.True(t, root.Event().PreviousEventHash.IsZero())
	assert.Equal(t, 1, store.NodeCount())
}

func TestAttach_Idempotent(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})
	rootID := store.CurrentRoot()
	ts := types.Now()

	event := message(rootID, "alice", "alice message", ts)
	store.Attach(event)
	store.Attach(event)

	assert.Equal(t, 2, store.NodeCount())
	assert.Equal(t, 0, store.OrphanCount())
	assert.Len(t, store.Root().Children(), 1)

	// Re-attaching a buffered orphan is also a no-op.
	orphanEvent := message(types.Hash{0xff}, "bob", "bob message", ts)
	store.Attach(orphanEvent)
	store.Attach(orphanEvent)

	assert.Equal(t, 1, store.OrphanCount())
}

func TestAttach_OrphanBeforeParent(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})
	rootID := store.CurrentRoot()
	ts := types.Now()

	parent := message(rootID, "alice", "parent", ts)
	child := message(hashOf(t, parent), "bob", "child", ts+1)

	store.Attach(child)
	assert.Equal(t, 1, store.NodeCount(), "child must stay buffered without its parent")
	assert.Equal(t, 1, store.OrphanCount())

	// Attaching the parent resolves the child without re-submission.
	store.Attach(parent)
	assert.Equal(t, 3, store.NodeCount())
	assert.Equal(t, 0, store.OrphanCount())

	childNode, ok := store.Get(hashOf(t, child))
	require.True(t, ok)
	assert.Equal(t, hashOf(t, parent), childNode.Parent().ID())
}

func TestAttach_MultiHopOrphanChain(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})
	rootID := store.CurrentRoot()
	ts := types.Now()

	a := message(rootID, "alice", "a", ts)
	b := message(hashOf(t, a), "bob", "b", ts+1)
	c := message(hashOf(t, b), "charlie", "c", ts+2)

	// Deepest first: everything is an orphan until a arrives.
	store.Attach(c)
	store.Attach(b)
	assert.Equal(t, 1, store.NodeCount())
	assert.Equal(t, 2, store.OrphanCount())

	store.Attach(a)
	assert.Equal(t, 4, store.NodeCount())
	assert.Equal(t, 0, store.OrphanCount())
	assert.Equal(t, hashOf(t, c), store.Head().ID())
}

func TestUnresolvedParents(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})
	ts := types.Now()

	missing := types.Hash{0xaa}
	store.Attach(message(missing, "alice", "one", ts))
	store.Attach(message(missing, "bob", "two", ts+1))

	parents := store.UnresolvedParents()
	require.Len(t, parents, 1)
	assert.Equal(t, missing, parents[0])
}

func TestOrphanLimit_EvictsOldest(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{OrphanLimit: 1})
	ts := types.Now()

	first := message(types.Hash{0x01}, "alice", "first", ts)
	second := message(types.Hash{0x02}, "bob", "second", ts+1)

	store.Attach(first)
	store.Attach(second)

	assert.Equal(t, 1, store.OrphanCount())

	parents := store.UnresolvedParents()
	require.Len(t, parents, 1)
	assert.Equal(t, types.Hash{0x02}, parents[0], "oldest orphan must have been evicted")
}

func TestOrphanLimit_ResolutionBeatsEviction(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{OrphanLimit: 1})
	rootID := store.CurrentRoot()
	ts := types.Now()

	parent := message(rootID, "alice", "parent", ts)
	child := message(hashOf(t, parent), "bob", "child", ts+1)

	// The child fills the buffer to its limit. Attaching the parent must
	// resolve both, not evict the child to make room.
	store.Attach(child)
	require.Equal(t, 1, store.OrphanCount())

	store.Attach(parent)

	assert.Equal(t, 3, store.NodeCount())
	assert.Equal(t, 0, store.OrphanCount())
	assert.Empty(t, store.UnresolvedParents())
	assert.Equal(t, hashOf(t, child), store.Head().ID())
}

func TestHeight(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})
	rootID := store.CurrentRoot()
	ts := types.Now()

	a := message(rootID, "alice", "a", ts)
	b := message(hashOf(t, a), "bob", "b", ts+1)
	store.Attach(a)
	store.Attach(b)

	assert.Equal(t, 0, store.Height(store.Root()))

	aNode, ok := store.Get(hashOf(t, a))
	require.True(t, ok)
	assert.Equal(t, 1, store.Height(aNode))

	bNode, ok := store.Get(hashOf(t, b))
	require.True(t, ok)
	assert.Equal(t, 2, store.Height(bNode))
}

func TestAncestorDepth(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})
	rootID := store.CurrentRoot()
	ts := types.Now()

	// Two branches of equal length from the root.
	a1 := message(rootID, "alice", "a1", ts)
	a2 := message(hashOf(t, a1), "alice", "a2", ts+1)
	b1 := message(rootID, "bob", "b1", ts)
	b2 := message(hashOf(t, b1), "bob", "b2", ts+1)

	for _, event := range []types.Event{a1, a2, b1, b2} {
		store.Attach(event)
	}

	a2Node, ok := store.Get(hashOf(t, a2))
	require.True(t, ok)
	b2Node, ok := store.Get(hashOf(t, b2))
	require.True(t, ok)

	assert.Equal(t, 2, store.AncestorDepth(a2Node, b2Node))
	assert.Equal(t, 0, store.AncestorDepth(a2Node, a2Node))
}

func TestHead_EndToEndScenario(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})
	rootID := store.CurrentRoot()
	ts := types.Now()

	a := message(rootID, "alice", "alice message", ts)
	b := message(rootID, "bob", "bob message", ts)
	c := message(rootID, "charlie", "charlie message", ts)
	store.Attach(a)
	store.Attach(b)
	store.Attach(c)

	d := message(hashOf(t, b), "delta", "delta message", ts)
	store.Attach(d)
	assert.Equal(t, hashOf(t, d), store.Head().ID(), "depth 2 must beat depth 1")

	e := message(hashOf(t, c), "epsilon", "epsilon message", ts)
	f := message(hashOf(t, e), "phi", "phi message", ts)
	store.Attach(e)
	store.Attach(f)

	assert.Equal(t, hashOf(t, f), store.Head().ID(), "depth 3 must beat depth 2")
}

func TestHead_TimestampTieBreak(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})
	rootID := store.CurrentRoot()
	ts := types.Now()

	older := message(rootID, "alice", "older branch", ts)
	newer := message(rootID, "bob", "newer branch", ts+100)
	store.Attach(older)
	store.Attach(newer)

	assert.Equal(t, hashOf(t, newer), store.Head().ID())
}

func TestHead_IDTieBreak(t *testing.T) {
	ts := types.Now()

	// Both replicas must share the genesis, or there is no common root to
	// converge under.
	store := newTestStore(t, dag.StoreConfig{GenesisTimestamp: ts})
	rootID := store.CurrentRoot()

	// Equal depth and equal timestamp: the lexicographically greater event
	// id must win, on every replica, in every arrival order.
	one := message(rootID, "alice", "one", ts)
	two := message(rootID, "bob", "two", ts)

	expected := hashOf(t, one)
	if other := hashOf(t, two); other.String() > expected.String() {
		expected = other
	}

	store.Attach(one)
	store.Attach(two)
	assert.Equal(t, expected, store.Head().ID())

	reversed := newTestStore(t, dag.StoreConfig{GenesisTimestamp: ts})
	require.Equal(t, rootID, reversed.CurrentRoot())
	reversed.Attach(two)
	reversed.Attach(one)
	assert.Equal(t, expected, reversed.Head().ID())
}

// permutations returns every ordering of events, attachment order must
// never influence the chosen head.
func permutations(events []types.Event) [][]types.Event {
	if len(events) <= 1 {
		return [][]types.Event{append([]types.Event{}, events...)}
	}

	var result [][]types.Event
	for i := range events {
		rest := make([]types.Event, 0, len(events)-1)
		rest = append(rest, events[:i]...)
		rest = append(rest, events[i+1:]...)
		for _, perm := range permutations(rest) {
			result = append(result, append([]types.Event{events[i]}, perm...))
		}
	}
	return result
}

func TestHead_DeterministicAcrossAttachmentOrders(t *testing.T) {
	ts := types.Now()
	reference := newTestStore(t, dag.StoreConfig{GenesisTimestamp: ts})
	rootID := reference.CurrentRoot()

	b := message(rootID, "bob", "bob message", ts)
	c := message(rootID, "charlie", "charlie message", ts+1)
	d := message(hashOf(t, b), "delta", "delta message", ts+2)
	e := message(hashOf(t, c), "epsilon", "epsilon message", ts+2)
	events := []types.Event{b, c, d, e}

	for _, event := range events {
		reference.Attach(event)
	}
	expected := reference.Head().ID()

	for _, perm := range permutations(events) {
		store := newTestStore(t, dag.StoreConfig{GenesisTimestamp: ts})
		for _, event := range perm {
			store.Attach(event)
		}

		require.Equal(t, 0, store.OrphanCount())
		assert.Equal(t, expected, store.Head().ID())
	}
}

func TestHead_ConcurrentReads(t *testing.T) {
	store := newTestStore(t, dag.StoreConfig{})
	rootID := store.CurrentRoot()
	ts := types.Now()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				head := store.Head()
				store.Height(head)
				store.Root()
			}
		}()
	}

	parent := rootID
	for i := 0; i < 200; i++ {
		event := message(parent, "alice", "chain message", ts+types.Timestamp(i))
		store.Attach(event)
		parent = hashOf(t, event)
	}

	close(done)
	wg.Wait()

	assert.Equal(t, parent, store.Head().ID())
	assert.Equal(t, 200, store.Height(store.Head()))
}
