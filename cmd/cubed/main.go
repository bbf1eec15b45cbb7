package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cube/bitcoinrpc"
	"cube/coin"
	"cube/config"
	"cube/engine"
	"cube/flame"
	"cube/graveyard"
	"cube/observability/logging"
	"cube/p2p"
	"cube/params"
	"cube/registry"
	"cube/state"
	"cube/status"
	"cube/storage"
	"cube/syncmgr"
)

const tipPollInterval = 30 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "decomp" {
		os.Exit(runDecomp(os.Args[2:]))
	}

	configFile := flag.String("config", "./cube.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CUBE_ENV"))
	logger := logging.Setup("cubed", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if cfg.LogFile != "" {
		logger = logging.SetupWithFile("cubed", env, cfg.LogFile)
	}
	if env == "" && cfg.LogEnv != "" {
		logger = logger.With("env", cfg.LogEnv)
	}

	chain, err := params.ParseChain(cfg.Chain)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse chain: %v", err))
	}
	logger.Info("starting node",
		"chain", chain.String(),
		"bitcoind", cfg.Bitcoind.URL,
		logging.MaskField("bitcoind_password", cfg.Bitcoind.Password))

	db, err := storage.NewLevelDB(storePath(cfg.DataDir, chain))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpcClient := bitcoinrpc.New(bitcoinrpc.Config{
		URL:      cfg.Bitcoind.URL,
		User:     cfg.Bitcoind.User,
		Password: cfg.Bitcoind.Password,
	}, logger)
	if err := rpcClient.Validate(ctx, chain); err != nil {
		if errors.Is(err, bitcoinrpc.ErrNotSynced) {
			logger.Warn("bitcoind is still in initial block download")
		} else {
			logger.Error("bitcoind validation failed", "err", err)
			os.Exit(1)
		}
	}

	registryMgr, err := registry.NewManager(db, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to load registry: %v", err))
	}
	holder, err := coin.NewHolder(db, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to load coin holdings: %v", err))
	}
	coinMgr := coin.NewManager(holder, logger)
	stateMgr, err := state.NewManager(db, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to load contract states: %v", err))
	}
	flameMgr, err := flame.NewManager(db, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to load flame sets: %v", err))
	}
	graveyardMgr, err := graveyard.NewManager(db, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to load graveyard: %v", err))
	}
	syncMgr, err := syncmgr.NewManager(db, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to load sync cursors: %v", err))
	}
	paramStore := params.NewStore(db, logger)

	eng := engine.New(engine.Managers{
		Registry:  registryMgr,
		Coin:      coinMgr,
		State:     stateMgr,
		Flames:    flameMgr,
		Graveyard: graveyardMgr,
	}, logger)

	statusSrv := status.NewServer(chain, syncMgr, registryMgr, logger)
	go func() {
		if err := statusSrv.ListenAndServe(cfg.StatusAddress); err != nil {
			logger.Error("status server stopped", "err", err)
		}
	}()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		panic(fmt.Sprintf("Failed to listen on %s: %v", cfg.ListenAddress, err))
	}
	go func() {
		if err := p2p.NewServer(logger).Serve(ctx, listener); err != nil {
			logger.Error("p2p server stopped", "err", err)
		}
	}()
	logger.Info("listening", "p2p", cfg.ListenAddress, "status", cfg.StatusAddress)

	followChainTip(ctx, rpcClient, syncMgr, eng, paramStore, logger)
	logger.Info("shutting down")
}

// storePath places the embedded store in a per-chain subdirectory so
// switching chains in the config never mixes two chains' trees.
func storePath(dataDir string, chain params.Chain) string {
	return filepath.Join(dataDir, chain.String())
}

// projectionWindow is how many blocks a flame projection stays live
// before it expires and its flames are refunded.
const projectionWindow = 144

// feeConfirmTarget is the confirmation target fee estimates budget for.
const feeConfirmTarget = 2

type feeEstimator interface {
	EstimateFeeRate(ctx context.Context, confTarget uint64) (uint64, error)
}

// refreshFeeRate stores the node's current fee estimate. A warming-up
// estimator is not an error; the stored rate simply stays as it was.
func refreshFeeRate(ctx context.Context, est feeEstimator, store *params.Store, logger *slog.Logger) {
	rate, err := est.EstimateFeeRate(ctx, feeConfirmTarget)
	if err != nil {
		if !errors.Is(err, bitcoinrpc.ErrNoFeeEstimate) && ctx.Err() == nil {
			logger.Warn("fee estimate failed", "err", err)
		}
		return
	}
	if err := store.SetFeeRate(rate); err != nil {
		logger.Warn("fee rate store failed", "err", err)
	}
}

// followChainTip advances the Bitcoin sync cursor towards the node's
// reported tip until the context is cancelled. Each new height runs a
// refresh batch so expired flame projections are pruned and refunded,
// and refreshes the stored fee rate.
func followChainTip(ctx context.Context, client *bitcoinrpc.Client, sync *syncmgr.Manager, eng *engine.Engine, fees *params.Store, logger *slog.Logger) {
	ticker := time.NewTicker(tipPollInterval)
	defer ticker.Stop()

	for {
		tip, ready, err := client.GetChainTip(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("chain tip poll failed", "err", err)
		} else if ready {
			if tip > sync.BitcoinSyncHeight() {
				if err := advanceTo(sync, eng, tip); err != nil {
					logger.Warn("cursor advance failed", "err", err)
				} else {
					logger.Info("bitcoin cursor advanced", "height", tip)
				}
			}
			sync.SetSynced(true)
			refreshFeeRate(ctx, client, fees, logger)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func advanceTo(sync *syncmgr.Manager, eng *engine.Engine, tip uint64) error {
	var expiry uint64
	if tip > projectionWindow {
		expiry = tip - projectionWindow
	}
	heights := engine.Heights{NewProjector: tip, ProjectorExpiry: expiry}
	if _, err := eng.ExecuteBatch(heights, func(engine.Managers) error { return nil }); err != nil {
		return err
	}
	return sync.SetBitcoinSyncHeight(tip)
}
