package main

import (
	"github.com/spf13/cobra"

	"github.com/sitegui/kaiju/board"
	"github.com/sitegui/kaiju/cache"
	"github.com/sitegui/kaiju/config"
	"github.com/sitegui/kaiju/jira"
	"github.com/sitegui/kaiju/prometheus"
	"github.com/sitegui/kaiju/server"
)

func newOpenBoardCmd() *cobra.Command {
	var noBrowser, devMode bool

	cmd := &cobra.Command{
		Use:   "open-board <board-name>",
		Short: "Open the Web interface in a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			metrics := prometheus.InitClient()
			requests := cache.NewKeyed(
				cache.WithParallelism(cfg.APIParallelism),
				cache.WithObserver(metrics),
			)
			api := jira.NewCached(jira.NewClient(cfg), requests, cfg.Cache)

			b, err := board.Open(ctx, cfg, api, args[0])
			if err != nil {
				return err
			}

			s := server.New(cfg, b, api, server.Options{DevMode: devMode, Metrics: metrics})
			return s.Run(ctx, !noBrowser)
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the board in a browser")
	cmd.Flags().BoolVar(&devMode, "dev-mode", false,
		"Serve the web resources directly from the local folder. Useful when developing Kaiju itself")
	return cmd
}

func loadConfig() (*config.Config, error) {
	path, err := config.Path()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}
