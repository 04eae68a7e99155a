package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/star-engine/config"
	"github.com/warp/star-engine/factory"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/logger"
	"github.com/warp/star-engine/service"
	"github.com/warp/star-engine/store/sqlite"
)

type globalFlags struct {
	configPath string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "starctl",
		Short:         "Star engine operator jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (default $STARS_CONFIG)")
	cmd.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite database path (overrides config)")

	cmd.AddCommand(newReviewCmd(g))
	cmd.AddCommand(newAwardCmd(g))
	cmd.AddCommand(newBonusCmd(g))
	cmd.AddCommand(newRevertCmd(g))
	cmd.AddCommand(newResetCmd(g))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// openService wires a Service over the configured database. The returned
// func closes the store.
func (g *globalFlags) openService() (*service.Service, func(), error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.dbPath != "" {
		cfg.Database.Path = g.dbPath
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, Format: "console", Service: "starctl", Writer: os.Stderr})

	var catalog *incentive.Catalog
	if cfg.Engine.CatalogPath == "" {
		catalog = factory.DefaultCatalog()
	} else if catalog, err = factory.NewCatalogFactory().LoadFile(cfg.Engine.CatalogPath); err != nil {
		return nil, nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	svc := service.New(store, catalog, service.OptionsFromConfig(cfg))
	return svc, func() { _ = store.Close() }, nil
}
