package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veristake/veristake/api"
	"github.com/veristake/veristake/claim"
	app_config "github.com/veristake/veristake/config"
	"github.com/veristake/veristake/explorer"
	"github.com/veristake/veristake/ledger"
	"github.com/veristake/veristake/reputation"
	"github.com/veristake/veristake/stake"
	"github.com/veristake/veristake/store"
)

var homeDir string

var serveCmd = &cobra.Command{
	Use:   "veristake",
	Short: "Veristake is a stake-backed claim verification service",
	Long: `A service where claims are backed by escrowed ledger stakes,
verified by the community and resolved by stake-weighted majority.`,
	Run: func(cmd *cobra.Command, args []string) {
		serve(cmd, args)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

func serve(cmd *cobra.Command, args []string) {
	if homeDir == "" {
		homeDir = os.ExpandEnv("$HOME/.veristake")
	}

	cfg := app_config.DefaultConfig(homeDir)
	viper.SetConfigFile(cfg.ConfigFile())
	if err := viper.ReadInConfig(); err != nil {
		stdlog.Fatalf("Reading config: %v", err)
	}
	if err := viper.Unmarshal(cfg); err != nil {
		stdlog.Fatalf("Decoding config: %v", err)
	}
	if err := cfg.ValidateBasic(); err != nil {
		stdlog.Fatalf("Invalid configuration data: %v", err)
	}

	filter, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		stdlog.Fatalf("failed to parse log level: %v", err)
	}
	logger := log.NewLogger(os.Stdout, log.FilterOption(filter))

	st, err := store.Open(cfg.StoreFile(), logger)
	if err != nil {
		stdlog.Fatalf("open store err:%v", err)
	}
	journal, err := stake.OpenJournal(cfg.JournalDir(), logger)
	if err != nil {
		stdlog.Fatalf("open journal err:%v", err)
	}

	var cli ledger.Client
	escrowAccount := cfg.Ledger.EscrowAccount
	if cfg.Ledger.RPCURL == "" {
		logger.Info("no ledger rpc configured, using in-memory mock ledger")
		mock := ledger.NewMock()
		if escrowAccount == "" {
			escrowAccount = "V" + strings.Repeat("ESCRW", 11)
		}
		cli = mock
	} else {
		var signer ledger.Signer
		if cfg.Ledger.SignerURL != "" {
			signer = ledger.NewRemoteSigner(cfg.Ledger.SignerURL, logger)
		} else {
			signer = ledger.NewMockSigner()
		}
		cli = ledger.NewHTTPClient(ledger.Options{
			URL:          cfg.Ledger.RPCURL,
			PollInterval: cfg.Ledger.PollInterval,
			MaxRetries:   cfg.Ledger.MaxRetries,
			Timeout:      cfg.Ledger.ConfirmTimeout,
		}, signer, logger)
	}

	stakeCfg := stake.Config{
		MinStake:       ledger.Units(cfg.Stake.MinStake),
		FeeBuffer:      ledger.Units(cfg.Stake.FeeBuffer),
		EscrowAccount:  escrowAccount,
		ConfirmTimeout: cfg.Ledger.ConfirmTimeout,
	}
	stakes := stake.NewLedger(st, cli, journal, stakeCfg, logger)
	lifecycle := claim.NewLifecycle(st, stakes, cfg.Stake.ResolutionWindow, logger)
	rep := reputation.NewEngine(st, cfg.Leaderboard.RewardScore, cfg.Leaderboard.RefreshInterval, logger)
	resolver := claim.NewResolver(st, cli, rep, cfg.Stake.ResolverInterval, logger)
	index := explorer.NewIndex(st, cli, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go resolver.Start(ctx)
	rep.Start()

	service := api.NewService(cfg.API.ListenAddr, lifecycle, rep, index, st, logger)
	go func() {
		if err := service.Start(); err != nil {
			stdlog.Fatalf("api serve err:%v", err)
		}
	}()

	defer func() {
		stdlog.Println("shut down...")
		done := make(chan struct{})
		go func() {
			defer close(done)
			cancel()
			rep.Stop()
			if err := journal.Close(); err != nil {
				logger.Error("close journal", "err", err)
			}
			if err := st.Close(); err != nil {
				logger.Error("close store", "err", err)
			}
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
