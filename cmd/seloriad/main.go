package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/inconshreveable/log15"

	"github.com/seloria/seloria/client"
	"github.com/seloria/seloria/config"
	"github.com/seloria/seloria/consensus"
	"github.com/seloria/seloria/eventbus"
	"github.com/seloria/seloria/mempool"
	"github.com/seloria/seloria/rpcapi"
	"github.com/seloria/seloria/state"
)

// Exit codes, per spec.md §6: 0 normal shutdown, 1 config error, 2 IO
// error at startup.
const (
	exitOK          = 0
	exitConfigError = 1
	exitIOError     = 2
)

func main() {
	log := log15.New("component", "seloriad")

	cfg, err := config.Load(os.Args[1:], "")
	if err != nil {
		log.Crit("config error", "err", err)
		os.Exit(exitConfigError)
	}

	if err := run(cfg, log); err != nil {
		log.Crit("fatal error", "err", err)
		os.Exit(exitIOError)
	}
	os.Exit(exitOK)
}

func run(cfg *config.Config, log log15.Logger) error {
	validator, err := cfg.ValidatorKeyPair()
	if err != nil {
		return fmt.Errorf("validator key: %w", err)
	}
	issuerKP, err := cfg.IssuerKeyPair()
	if err != nil {
		return fmt.Errorf("issuer key: %w", err)
	}
	genesis, err := cfg.GenesisConfig()
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	endpointSpecs, err := cfg.ValidatorEndpoints()
	if err != nil {
		return fmt.Errorf("validator endpoints: %w", err)
	}
	endpoints := make([]consensus.ValidatorEndpoint, len(endpointSpecs))
	for i, ep := range endpointSpecs {
		endpoints[i] = consensus.ValidatorEndpoint{Pubkey: ep.Pubkey, Address: ep.Address}
	}

	cs := state.New(memdb.New())
	if blob, ok, err := loadStateFile(cfg.DataDir); err != nil {
		return fmt.Errorf("load state: %w", err)
	} else if ok {
		if err := cs.LoadSnapshot(blob); err != nil {
			return fmt.Errorf("restore state: %w", err)
		}
		log.Info("restored state from disk", "data_dir", cfg.DataDir)
	} else {
		if err := state.InitGenesis(cs, genesis); err != nil {
			return fmt.Errorf("init genesis: %w", err)
		}
		log.Info("initialized genesis state", "chain_id", genesis.ChainID)
	}

	mp := mempool.New(mempool.Config{MaxSize: cfg.MempoolMaxSize, MaxPerSender: cfg.MempoolMaxPerSender})
	bus := eventbus.New()
	nodeCfg := consensus.Config{ChainID: cfg.ChainID, MaxBlockTxs: cfg.MaxBlockTxs}
	transport := client.NewTransport(log)
	node := consensus.NewNode(nodeCfg, validator, genesis.Validators, endpoints, cfg.RoundTimeMs, cs, mp, bus, transport)

	snapshotter := &persistingBus{dataDir: cfg.DataDir, cs: cs, log: log}
	go snapshotter.run(bus)

	srv := rpcapi.New(node, mp, bus, rpcapi.Config{
		ChainID:   cfg.ChainID,
		IssuerKey: issuerKP,
		EnableWS:  cfg.EnableWS,
	}, log)

	httpServer := &http.Server{Addr: cfg.RPCAddr, Handler: srv.Handler()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go node.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.RPCAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		return err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownGrace)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	return saveStateFile(cfg.DataDir, cs)
}
