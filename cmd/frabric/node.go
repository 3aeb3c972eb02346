package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/frabric-app/app"
	"github.com/calehh/frabric-app/config"
	"github.com/calehh/frabric-app/indexer"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "frabric",
	Short: "Frabric is a governance ledger for tokenized real-world assets",
	Long: `Frabric runs a DAO of KYC-verified participants: proposals,
governor bonds and crowdfunded asset threads on a CometBFT chain.`,
}

var nodeHome string

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a frabric node",
	Args:  cobra.NoArgs,
	Run:   nodeRun,
}

func init() {
	homeFlag(nodeCmd, &nodeHome)
}

func nodeRun(cmd *cobra.Command, args []string) {
	appConfig, err := config.LoadConfig(nodeHome)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pv := privval.LoadFilePV(
		appConfig.PrivValidatorKeyFile(),
		appConfig.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(appConfig.NodeKeyFile())
	if err != nil {
		log.Fatalf("failed to load node's key: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(appConfig.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	frabricApp, err := app.NewFrabricApp(appConfig.App, logger, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("new App err:%v", err)
	}

	node, err := nm.NewNode(
		appConfig.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(frabricApp),
		nm.DefaultGenesisDocProviderFunc(appConfig.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(appConfig.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("Creating node: %v", err)
	}

	frabricApp.Start(node.BlockStore())
	err = node.Start()
	if err != nil {
		log.Fatalf("start comet node err %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	if appConfig.App.IndexerDB != "" {
		startIndexer(ctx, appConfig, logger)
	}

	defer func() {
		log.Println("shut down...")
		cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			err = node.Stop()
			if err != nil {
				log.Printf("stop comet node err %s", err.Error())
			}
			node.Wait()
			frabricApp.Stop()
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

func startIndexer(ctx context.Context, appConfig *config.Config, logger cmtlog.Logger) {
	rpcUrl, err := url.Parse(appConfig.RPC.ListenAddress)
	if err != nil {
		log.Fatalf("parse rpc address err %s", err.Error())
	}
	rpcUrl.Scheme = "http"
	src, err := indexer.NewHTTPSource(rpcUrl.String())
	if err != nil {
		log.Fatalf("new rpc client err %s", err.Error())
	}
	db, err := indexer.OpenDB(appConfig.App.IndexerDBPath())
	if err != nil {
		log.Fatalf("open indexer db err %s", err.Error())
	}
	idx, err := indexer.NewChainIndexer(logger, db, src, appConfig.App.IndexerInterval)
	if err != nil {
		log.Fatalf("new chain indexer err %s", err.Error())
	}
	go idx.Start(ctx)

	if appConfig.App.ServiceListenAddr != "" {
		svc := indexer.NewService(appConfig.App.ServiceListenAddr, db)
		go func() {
			if err := svc.Start(); err != nil {
				logger.Error("indexer service stopped", "err", err)
			}
		}()
	}
}
