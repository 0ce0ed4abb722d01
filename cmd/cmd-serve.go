package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/stupside/reel/internal/app"
	"github.com/stupside/reel/internal/relay"
	"github.com/stupside/reel/internal/report"
	"github.com/stupside/reel/internal/server"
)

// serveCommand returns the "serve" CLI subcommand.
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the extraction form, reports and video relay over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "Listen address, overrides server.address",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}
			if addr := cmd.String("address"); addr != "" {
				cfg.Server.Address = addr
			}

			p, closeStore, err := newPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			srv := server.New(
				p,
				relay.New(p, cfg.Relay),
				report.New(cfg.Server.PublicPrefix, cfg.Relay.ProxyLinks),
				server.Options{
					PublicPrefix:  cfg.Server.PublicPrefix,
					ScreenshotDir: cfg.Screenshot.Dir,
					OutputFile:    cfg.Report.OutputFile,
				},
			)

			return server.ListenAndServe(ctx, cfg.Server, srv)
		},
	}
}
