// Package monitor periodically samples store and process statistics.
// The orphan buffer has no intrinsic bound, so its size is the number to
// watch on a long-running replica.
package monitor

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"

	"github.com/narodnik/mvc-ircd/pkg/dag"
)

var log *logrus.Logger

const defaultInterval = 30 * time.Second

type Config struct {
	Logger *logrus.Logger

	// Interval between samples. Defaults to 30s.
	Interval time.Duration
}

// Snapshot is one observation of the store and the process around it.
type Snapshot struct {
	Nodes             int
	Orphans           int
	Goroutines        int
	ProcessRSS        uint64
	SystemUsedPercent float64
}

type Monitor struct {
	config Config
	store  *dag.Store
	proc   *process.Process

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewMonitor(store *dag.Store, config Config) *Monitor {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warnf("cannot observe own process, memory stats disabled: %v", err)
		proc = nil
	}

	return &Monitor{
		config: config,
		store:  store,
		proc:   proc,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the sampling loop. Stop it with Stop.
func (m *Monitor) Start() {
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				snapshot, err := m.Sample()
				if err != nil {
					log.Warnf("error sampling store statistics: %v", err)
					continue
				}

				log.WithFields(logrus.Fields{
					"nodes":      snapshot.Nodes,
					"orphans":    snapshot.Orphans,
					"goroutines": snapshot.Goroutines,
					"rssBytes":   snapshot.ProcessRSS,
					"memUsedPct": fmt.Sprintf("%.1f", snapshot.SystemUsedPercent),
				}).Info("event store statistics")
			}
		}
	}()
}

// Stop halts the sampling loop and waits for it to exit. Must only follow a
// Start call.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
}

// Sample takes one snapshot immediately.
func (m *Monitor) Sample() (Snapshot, error) {
	snapshot := Snapshot{
		Nodes:      m.store.NodeCount(),
		Orphans:    m.store.OrphanCount(),
		Goroutines: runtime.NumGoroutine(),
	}

	if m.proc != nil {
		memInfo, err := m.proc.MemoryInfo()
		if err != nil {
			return snapshot, fmt.Errorf("error reading process memory info: %w", err)
		}
		snapshot.ProcessRSS = memInfo.RSS
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return snapshot, fmt.Errorf("error reading system memory info: %w", err)
	}
	snapshot.SystemUsedPercent = vm.UsedPercent

	return snapshot, nil
}
