// Package ircd wires the event DAG store, the replay view and the runtime
// monitor into one replica instance for a decentralized chat daemon.
package ircd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/narodnik/mvc-ircd/pkg/dag"
	"github.com/narodnik/mvc-ircd/pkg/encoding"
	"github.com/narodnik/mvc-ircd/pkg/monitor"
	"github.com/narodnik/mvc-ircd/pkg/types"
	"github.com/narodnik/mvc-ircd/pkg/view"
)

type Config struct {
	// Logger is an optional structured logger. If nil, a stderr logger is
	// used.
	Logger *logrus.Logger

	// Nick is the local user's nickname for composed messages.
	Nick string

	// OrphanLimit bounds the store's orphan buffer, 0 means unbounded.
	OrphanLimit int

	// GenesisTimestamp pins the genesis so replicas agree on the root id.
	// 0 uses the creation time.
	GenesisTimestamp types.Timestamp

	// MonitorInterval is the statistics sampling interval.
	MonitorInterval time.Duration
}

type Ircd struct {
	Store *dag.Store
	View  *view.View

	monitor *monitor.Monitor
	log     *logrus.Logger
	config  Config
}

func New(config Config) (*Ircd, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.Nick == "" {
		config.Nick = "anon"
	}

	store, err := dag.NewStore(dag.StoreConfig{
		Logger:           config.Logger,
		OrphanLimit:      config.OrphanLimit,
		GenesisTimestamp: config.GenesisTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating event store: %w", err)
	}

	mon := monitor.NewMonitor(store, monitor.Config{
		Logger:   config.Logger,
		Interval: config.MonitorInterval,
	})
	mon.Start()

	return &Ircd{
		Store:   store,
		View:    view.New(),
		monitor: mon,
		log:     config.Logger,
		config:  config,
	}, nil
}

func (ir *Ircd) Close() {
	ir.monitor.Stop()
}

// ComposeMessage builds a chat message event on top of the given parent.
func ComposeMessage(parent types.Hash, nick, msg string, ts types.Timestamp) types.Event {
	return types.Event{
		PreviousEventHash: parent,
		Action:            types.PrivMsg{Nick: nick, Msg: msg},
		Timestamp:         ts,
	}
}

// SendMessage composes a message on top of the current head, attaches it
// and returns its event id. This is the local-creation producer path;
// network delivery goes through the same Attach.
func (ir *Ircd) SendMessage(msg string) (types.Hash, error) {
	event := ComposeMessage(ir.Store.Head().ID(), ir.config.Nick, msg, types.Now())

	id, err := encoding.HashEvent(event)
	if err != nil {
		return types.Hash{}, fmt.Errorf("error hashing message event: %w", err)
	}

	ir.Store.Attach(event)
	ir.log.WithFields(logrus.Fields{
		"event": id.String(),
		"nick":  ir.config.Nick,
	}).Debug("sent message")

	return id, nil
}

// Replay returns the events not yet presented to the user, in replay order.
func (ir *Ircd) Replay() []types.Event {
	return ir.View.Process(ir.Store)
}
