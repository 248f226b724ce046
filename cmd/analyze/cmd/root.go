package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"solana-token-radar/internal/app"
	"solana-token-radar/internal/config"
	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/logging"
)

// Service is the part of the radar service the commands call.
type Service interface {
	AnalyzeHolderDistribution(ctx context.Context, mint string) (domain.HolderDistribution, error)
	DetectDistributionPatterns(ctx context.Context, mint string) (domain.DistributionSignals, error)
	CheckHoneypot(ctx context.Context, mint string) (domain.HoneypotResult, error)
	ResolveLPAddresses(ctx context.Context, mint string) ([]*domain.LPAddressSet, error)
	RugcheckReport(ctx context.Context, mint string) (*domain.RiskReport, error)
	MintInfo(ctx context.Context, mint string) (*domain.MintInfo, error)
}

type builder func(configPath string) (Service, func(), error)

type runFunc func(ctx context.Context, svc Service, mint string) (interface{}, error)

func RootCmd() *cobra.Command {
	return newRootCmd(newService)
}

func newRootCmd(build builder) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "run token analytics for a single mint",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config")

	connect := func() (Service, func(), error) { return build(configPath) }
	cmd.AddCommand(
		mintCmd("holders", "holder concentration over non-LP accounts", connect, func(ctx context.Context, svc Service, mint string) (interface{}, error) {
			return svc.AnalyzeHolderDistribution(ctx, mint)
		}),
		mintCmd("patterns", "distribution pattern signals", connect, func(ctx context.Context, svc Service, mint string) (interface{}, error) {
			return svc.DetectDistributionPatterns(ctx, mint)
		}),
		mintCmd("honeypot", "simulated buy/sell round trip", connect, func(ctx context.Context, svc Service, mint string) (interface{}, error) {
			return svc.CheckHoneypot(ctx, mint)
		}),
		mintCmd("lp", "liquidity pool addresses per counter-asset", connect, func(ctx context.Context, svc Service, mint string) (interface{}, error) {
			return svc.ResolveLPAddresses(ctx, mint)
		}),
		mintCmd("rugcheck", "filtered third-party risk report", connect, func(ctx context.Context, svc Service, mint string) (interface{}, error) {
			return svc.RugcheckReport(ctx, mint)
		}),
		mintCmd("mint", "decoded mint account and risky extensions", connect, func(ctx context.Context, svc Service, mint string) (interface{}, error) {
			return svc.MintInfo(ctx, mint)
		}),
	)
	return cmd
}

func mintCmd(use, short string, connect func() (Service, func(), error), run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <mint>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			svc, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := run(cmd.Context(), svc, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

// newService builds a service over in-memory stores; analyses never persist.
func newService(configPath string) (Service, func(), error) {
	os.Setenv(config.EnvPrefix+"_STORAGE_USE_MEMORY", "true")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Log.File = ""
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	stores, cleanup, err := app.NewStores(context.Background(), cfg.Storage, logger)
	if err != nil {
		return nil, nil, err
	}
	svc := app.NewService(app.Options{
		Config:  cfg,
		Stores:  stores,
		Clients: app.NewClients(cfg.Upstream, logger),
		Logger:  logger,
	})
	return svc, func() {
		cleanup()
		_ = logger.Sync()
	}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
