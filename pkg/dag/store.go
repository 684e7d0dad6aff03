// Package dag implements the replicated event graph: an append-only DAG of
// hash-chained events with orphan buffering and a deterministic fork-choice
// rule, so replicas that receive the same events in any order converge on
// the same canonical head.
package dag

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/narodnik/mvc-ircd/pkg/encoding"
	"github.com/narodnik/mvc-ircd/pkg/types"
)

var log *logrus.Logger

const (
	genesisNick = "root"
	genesisMsg  = "Let there be dark"
)

type StoreConfig struct {
	Logger *logrus.Logger

	// OrphanLimit bounds the orphan buffer. When the buffer still exceeds
	// the limit after reorganization, the oldest orphans by arrival are
	// evicted. 0 disables the bound; the buffer then grows with every
	// unresolvable event.
	OrphanLimit int

	// GenesisTimestamp pins the genesis event's timestamp so replicas can
	// agree on the root id. 0 uses the store's creation time, which only
	// works for a replica that never talks to anybody.
	GenesisTimestamp types.Timestamp
}

type orphan struct {
	id    types.Hash
	event types.Event
}

// Store owns the full node index, the current root and the orphan buffer.
// All mutating calls are serialized behind one lock; read-only queries may
// run concurrently with writes and with each other.
type Store struct {
	config StoreConfig

	mu          sync.RWMutex
	currentRoot types.Hash
	events      map[types.Hash]*Node
	orphans     []orphan
	orphanIDs   map[types.Hash]struct{}
}

// NewStore builds a store around a synthetic genesis event with an all-zero
// parent hash. The genesis node becomes the current root.
func NewStore(config StoreConfig) (*Store, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	genesisTS := config.GenesisTimestamp
	if genesisTS == 0 {
		genesisTS = types.Now()
	}

	genesis := types.Event{
		Action:    types.PrivMsg{Nick: genesisNick, Msg: genesisMsg},
		Timestamp: genesisTS,
	}

	rootID, err := encoding.HashEvent(genesis)
	if err != nil {
		return nil, fmt.Errorf("error hashing genesis event: %w", err)
	}

	rootNode := &Node{
		id:    rootID,
		event: genesis,
	}

	s := &Store{
		config:      config,
		currentRoot: rootID,
		events:      map[types.Hash]*Node{rootID: rootNode},
		orphanIDs:   make(map[types.Hash]struct{}),
	}

	log.WithField("root", rootID.String()).Debug("created event store")

	return s, nil
}

// Attach places the event into the orphan buffer and runs reorganization.
// It is idempotent: re-attaching an already known event, indexed or still an
// orphan, is a silent no-op. Events with an action this implementation
// cannot encode have no identity and are a programming error upstream, since
// decode already rejects unknown tags.
func (s *Store) Attach(event types.Event) {
	id, err := encoding.HashEvent(event)
	if err != nil {
		log.Panicf("attach of unencodable event: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; ok {
		return
	}
	if _, ok := s.orphanIDs[id]; ok {
		return
	}

	s.orphans = append(s.orphans, orphan{id: id, event: event})
	s.orphanIDs[id] = struct{}{}

	s.reorganize()

	// The bound applies to what reorganization could not place. Evicting
	// beforehand would throw away an orphan whose missing parent is the very
	// event being attached.
	for s.config.OrphanLimit > 0 && len(s.orphans) > s.config.OrphanLimit {
		evicted := s.orphans[0]
		s.orphans = s.orphans[1:]
		delete(s.orphanIDs, evicted.id)
		log.WithFields(logrus.Fields{
			"event":  evicted.id.String(),
			"parent": evicted.event.PreviousEventHash.String(),
		}).Warn("orphan buffer full, evicting oldest orphan")
	}
}

// reorganize attaches every buffered orphan whose parent is indexed.
// A single pass resolves only orphans whose immediate parent is already in
// the index; passes repeat until no orphan makes progress, so a parent
// arriving after its child still pulls the whole waiting chain in. Orphans
// whose ancestors are missing entirely stay buffered until the
// synchronization layer delivers them.
//
// Callers must hold the write lock.
func (s *Store) reorganize() {
	for {
		progress := false
		remaining := s.orphans[:0]

		for _, o := range s.orphans {
			parent, ok := s.events[o.event.PreviousEventHash]
			if !ok {
				remaining = append(remaining, o)
				continue
			}

			node := &Node{
				id:     o.id,
				event:  o.event,
				parent: parent,
			}
			parent.appendChild(node)
			s.events[o.id] = node
			delete(s.orphanIDs, o.id)
			progress = true

			log.WithFields(logrus.Fields{
				"event":  o.id.String(),
				"parent": parent.id.String(),
			}).Debug("attached orphan to graph")
		}

		s.orphans = remaining
		if !progress {
			return
		}
	}
}

// Root returns the node of the current root. The root missing from the
// index means the graph is corrupt; the process must not continue.
func (s *Store) Root() *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.events[s.currentRoot]
	if !ok {
		log.Panicf("current root %s is not in the event index", s.currentRoot)
	}
	return node
}

// CurrentRoot returns the id of the current root event.
func (s *Store) CurrentRoot() types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoot
}

// Get looks up a node by event id.
func (s *Store) Get(id types.Hash) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.events[id]
	return node, ok
}

// NodeCount returns the number of indexed nodes, genesis included.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// OrphanCount returns the number of buffered orphans.
func (s *Store) OrphanCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orphans)
}

// UnresolvedParents returns the deduplicated parent ids the buffered
// orphans are waiting for. The synchronization layer requests these from
// peers and re-delivers them via Attach.
func (s *Store) UnresolvedParents() []types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[types.Hash]struct{})
	parents := make([]types.Hash, 0, len(s.orphans))
	for _, o := range s.orphans {
		parent := o.event.PreviousEventHash
		if _, ok := seen[parent]; ok {
			continue
		}
		seen[parent] = struct{}{}
		parents = append(parents, parent)
	}
	return parents
}

// Height counts the edges from node up to the current root. A non-root
// node without a parent link means the graph is corrupt; the process must
// not continue.
func (s *Store) Height(node *Node) int {
	rootID := s.CurrentRoot()

	height := 0
	for node.id != rootID {
		if node.parent == nil {
			log.Panicf("non-root node %s has no parent link", node.id)
		}
		height++
		node = node.parent
	}
	return height
}

// AncestorDepth walks both parent chains in lock-step until they meet and
// returns the number of steps. Precondition: a and b are equally deep and
// share a common ancestor reachable through parent links.
func (s *Store) AncestorDepth(a, b *Node) int {
	depth := 0
	for a.id != b.id {
		if a.parent == nil || b.parent == nil {
			log.Panicf("no common ancestor between %s and %s", a.id, b.id)
		}
		depth++
		a = a.parent
		b = b.parent
	}
	return depth
}

// DumpGraph writes every node with its height, then the root and head ids.
// Output is ordered by height then id so repeated dumps of the same graph
// compare equal.
func (s *Store) DumpGraph(w io.Writer) {
	s.mu.RLock()
	nodes := make([]*Node, 0, len(s.events))
	for _, node := range s.events {
		nodes = append(nodes, node)
	}
	s.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool {
		hi, hj := s.Height(nodes[i]), s.Height(nodes[j])
		if hi != hj {
			return hi < hj
		}
		return bytes.Compare(nodes[i].id.Bytes(), nodes[j].id.Bytes()) < 0
	})

	for _, node := range nodes {
		fmt.Fprintf(w, "%s: %s [height=%d]\n", node.id, node.event, s.Height(node))
	}

	fmt.Fprintf(w, "root: %s\n", s.Root().ID())
	fmt.Fprintf(w, "head: %s\n", s.Head().ID())
}
