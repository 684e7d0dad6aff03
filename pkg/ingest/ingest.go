// Package ingest is the delivery boundary between a peer transport and the
// event store. Raw frames are decoded on a worker pool, malformed frames
// are dropped before they can reach the store, and decoded events are
// funneled through a single attacher goroutine so the store only ever sees
// one logical writer.
package ingest

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/narodnik/mvc-ircd/pkg/dag"
	"github.com/narodnik/mvc-ircd/pkg/encoding"
	"github.com/narodnik/mvc-ircd/pkg/types"
)

var log *logrus.Logger

type Config struct {
	Logger *logrus.Logger

	// WorkerCount is the number of decode workers. Defaults to the number
	// of CPUs.
	WorkerCount int

	// QueueSize is the frame queue buffer. Deliver blocks when it is full.
	// Defaults to 1024.
	QueueSize int
}

type Pool struct {
	config Config
	store  *dag.Store

	frames  chan []byte
	decoded chan types.Event

	workers  sync.WaitGroup
	attacher sync.WaitGroup

	dropped uint64
}

// NewPool creates the pool and starts its workers. Callers must Close it
// when done delivering.
func NewPool(store *dag.Store, config Config) *Pool {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU()
	}
	if config.QueueSize < 1 {
		config.QueueSize = 1024
	}

	p := &Pool{
		config:  config,
		store:   store,
		frames:  make(chan []byte, config.QueueSize),
		decoded: make(chan types.Event, config.QueueSize),
	}

	for i := 0; i < config.WorkerCount; i++ {
		p.workers.Add(1)
		go p.worker()
	}

	p.attacher.Add(1)
	go p.attach()

	return p
}

func (p *Pool) worker() {
	defer p.workers.Done()

	for frame := range p.frames {
		event, err := encoding.Decode(frame)
		if err != nil {
			atomic.AddUint64(&p.dropped, 1)
			log.Warnf("dropping malformed frame: %v", err)
			continue
		}
		p.decoded <- event
	}
}

func (p *Pool) attach() {
	defer p.attacher.Done()

	for event := range p.decoded {
		p.store.Attach(event)
	}
}

// Deliver queues one raw frame for decoding and attachment. It blocks while
// the frame queue is full and must not be called after Close.
func (p *Pool) Deliver(frame []byte) {
	p.frames <- frame
}

// Close drains the queued frames, attaches everything decodable and stops
// all workers. The pool cannot be reused afterwards.
func (p *Pool) Close() {
	close(p.frames)
	p.workers.Wait()
	close(p.decoded)
	p.attacher.Wait()
}

// Dropped returns the number of malformed frames discarded so far.
func (p *Pool) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Unresolved returns the parent ids the store is still waiting for after
// everything delivered so far. A transport uses this to request missing
// ancestors from peers and re-deliver them.
func (p *Pool) Unresolved() []types.Hash {
	return p.store.UnresolvedParents()
}
