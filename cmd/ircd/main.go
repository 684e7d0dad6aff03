// Command ircd runs a manual demo scenario against a fresh replica: three
// messages fan out from genesis, two competing branches extend them, and
// the fork-choice must land on the longest chain. It ends with a full graph
// dump and a replay of the message sequence a user would see.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	ircd "github.com/narodnik/mvc-ircd"
	"github.com/narodnik/mvc-ircd/internal/config"
	"github.com/narodnik/mvc-ircd/pkg/encoding"
	"github.com/narodnik/mvc-ircd/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	verbose := flag.Bool("v", false, "enable debug logging")
	jsonDump := flag.Bool("json", false, "dump events as JSON instead of the text graph")
	flag.Parse()

	logger := logrus.New()

	conf, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("error loading config: %v", err)
	}

	level, err := conf.Level()
	if err != nil {
		logger.Fatalf("error in config: %v", err)
	}
	logger.SetLevel(level)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ir, err := ircd.New(ircd.Config{
		Logger:           logger,
		Nick:             conf.Nick,
		OrphanLimit:      conf.OrphanLimit,
		MonitorInterval:  time.Duration(conf.MonitorIntervalSeconds) * time.Second,
		GenesisTimestamp: types.Timestamp(conf.GenesisTimestampMillis),
	})
	if err != nil {
		logger.Fatalf("error creating replica: %v", err)
	}
	defer ir.Close()

	rootID := ir.Store.Root().ID()
	timestamp := types.Now() + 1

	attach := func(event types.Event) types.Hash {
		id, err := encoding.HashEvent(event)
		if err != nil {
			logger.Fatalf("error hashing event: %v", err)
		}
		ir.Store.Attach(event)
		return id
	}

	attach(ircd.ComposeMessage(rootID, "alice", "alice message", timestamp))
	bobID := attach(ircd.ComposeMessage(rootID, "bob", "bob message", timestamp))
	charlieID := attach(ircd.ComposeMessage(rootID, "charlie", "charlie message", timestamp))

	deltaID := attach(ircd.ComposeMessage(bobID, "delta", "delta message", timestamp))
	if head := ir.Store.Head().ID(); head != deltaID {
		logger.Fatalf("expected head %s after delta but got %s", deltaID, head)
	}

	// Now lets extend another chain
	epsilonID := attach(ircd.ComposeMessage(charlieID, "epsilon", "epsilon message", timestamp))
	phiID := attach(ircd.ComposeMessage(epsilonID, "phi", "phi message", timestamp))
	if head := ir.Store.Head().ID(); head != phiID {
		logger.Fatalf("expected head %s after phi but got %s", phiID, head)
	}

	if *jsonDump {
		for _, event := range ir.Replay() {
			event.PrettyPrint()
		}
		return
	}

	ir.Store.DumpGraph(os.Stdout)

	fmt.Println("replay:")
	for _, event := range ir.Replay() {
		fmt.Printf("  %s\n", event)
	}
}
