package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"brokergate/internal/config"
	"brokergate/internal/logger"
	"brokergate/internal/mockdata"
	"brokergate/internal/registry"
	"brokergate/internal/store/accounts"
	httpapi "brokergate/internal/transport/http"
)

var cfgPath string

func main() {
	// Optional .env for local development; real deployments configure
	// through the YAML file.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "brokergate",
		Short: "Broker integration gateway for the trading journal",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("BROKERGATE_CONFIG", "configs/config.yaml"), "path to the YAML config file")
	root.AddCommand(serveCmd(), platformsCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.SetLevel(cfg.Log.Level)
			logger.SetFormat(cfg.Log.Format)
			if cfg.Log.Path != "" {
				f, err := os.OpenFile(cfg.Log.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file failed: %w", err)
				}
				defer f.Close()
				logger.SetOutput(f)
			}
			if cfg.Log.WirePath != "" {
				f, err := os.OpenFile(cfg.Log.WirePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("opening wire trace file failed: %w", err)
				}
				defer f.Close()
				logger.SetWireWriter(f)
				logger.EnableWireBodyDump(cfg.Log.WireDumpBody)
			}
			mock := mockdata.NewPolicy(cfg.Mock.Enabled)
			if mock.Enabled() {
				logger.Infof("mock data mode is ON: no platform calls will be made")
			}
			reg := registry.New(cfg, mock)
			store, err := accounts.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			srv, err := httpapi.NewServer(httpapi.ServerConfig{
				Addr:         cfg.Server.Addr,
				Registry:     reg,
				Accounts:     store,
				ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
				WriteTimeout: cfg.Server.WriteTimeoutDuration(),
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
}

func platformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List supported platforms and their credential schemes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg := registry.New(cfg, mockdata.NewPolicy(cfg.Mock.Enabled))
			for _, d := range reg.ListAvailable() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-14s auth=%s\n", d.Key, d.Name, d.CredentialKind)
			}
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Printf("config file %s not found, using defaults", cfgPath)
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
