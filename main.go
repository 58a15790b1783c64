package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/synergia/posyg-node/api"
	"github.com/synergia/posyg-node/core"
	"github.com/synergia/posyg-node/governance"
	"github.com/synergia/posyg-node/p2p"
	"github.com/synergia/posyg-node/subnet"
)

const (
	numParticipants = 10
	numValidators   = 10
	totalSubnets    = 5
	cycleInterval   = 10 * time.Second
)

func main() {
	app := cli.NewApp()
	app.Name = "posyg-node"
	app.Usage = "run a Proof of Synergy consensus node"
	app.ArgsUsage = "<node_id> <port>"
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		cli.ShowAppHelp(ctx)
		return cli.NewExitError(fmt.Sprintf("Usage: %s <node_id> <port>", ctx.App.Name), 1)
	}
	nodeID, err := strconv.ParseUint(ctx.Args().Get(0), 10, 64)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("invalid node_id: %v", err), 1)
	}
	port, err := strconv.Atoi(ctx.Args().Get(1))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("invalid port: %v", err), 1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(log.Writer(), &slog.HandlerOptions{Level: slog.LevelDebug})))

	registry := core.NewRegistry(numParticipants)
	ledger := core.NewLedger(3)
	network := p2p.NewNetwork(nodeID)
	coordinator := core.NewCoordinator(numValidators, network, registry, ledger)
	gov := governance.New(registry)
	subnets := subnet.NewManager(totalSubnets)
	subnets.Assign(nodeID)

	discovery := p2p.NewDiscovery(nodeID, "127.0.0.1")
	discovery.DiscoverNodes()
	for _, known := range discovery.KnownNodes() {
		address, err := discovery.NodeAddress(known)
		if err != nil {
			continue
		}
		network.RegisterPeer(known, address)
	}

	store, err := core.OpenStore(fmt.Sprintf("posyg-%d.db", nodeID))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer store.Close()

	mux := api.NewMux(ledger, registry)
	mux.HandleFunc("/ws", network.Handler())
	go func() {
		addr := fmt.Sprintf(":%d", port)
		slog.Info("http server running", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatal("Error starting server:", err)
		}
	}()

	slog.Info("node started", "node", nodeID, "port", port)

	ticker := time.NewTicker(cycleInterval)
	defer ticker.Stop()
	round := 0
	for range ticker.C {
		round++
		registry.RunCycle()

		if err := coordinator.InitiateConsensus(); err != nil {
			slog.Warn("consensus round failed", "round", round, "error", err)
		} else {
			latest := ledger.LatestBlock()
			if err := store.PutBlock(latest); err != nil {
				slog.Error("failed to persist block", "error", err)
			}
		}

		// A governance beat every few rounds keeps the proposal flow alive
		// in the simulation.
		if round%5 == 1 {
			id := gov.CreateProposal("Increase block reward")
			if err := gov.Vote(id, true, 0); err != nil {
				slog.Warn("vote failed", "error", err)
			}
			if err := gov.FinalizeProposal(id); err != nil {
				slog.Warn("finalize failed", "error", err)
			}
		}

		for i := 0; i < registry.Size(); i++ {
			if p, err := registry.Snapshot(i); err == nil {
				if err := store.PutParticipant(p); err != nil {
					slog.Error("failed to persist participant", "error", err)
				}
			}
		}

		ledger.PruneForks()
		subnets.Rebalance()
		ledger.LogChainState()
	}
	return nil
}
