package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/stupside/reel/internal/app"
	"github.com/stupside/reel/internal/report"
)

// extractCommand returns the "extract" CLI subcommand.
func extractCommand() *cli.Command {
	var urlArg string

	return &cli.Command{
		Name:  "extract",
		Usage: "Render a page once and print its HTML",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "url",
				Destination: &urlArg,
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "report",
				Usage: "Print the results report instead of the rendered HTML",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			u, err := url.Parse(urlArg)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("invalid URL %q", urlArg)
			}

			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}

			p, closeStore, err := newPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := p.Run(ctx, u.String())
			if err != nil {
				return fmt.Errorf("extracting %s: %w", u, err)
			}

			if res.Media.Found() {
				slog.InfoContext(ctx, "video source", "src", res.Media.Src, "origin", res.Media.Origin.String())
			} else {
				slog.InfoContext(ctx, "no video source found")
			}

			in := report.Input{OriginalURL: res.URL, ContentID: res.ContentID, Media: res.Media, PageHTML: res.HTML}
			if res.Screenshot != nil {
				in.ScreenshotName = res.Screenshot.Name
				slog.InfoContext(ctx, "screenshot saved", "path", res.Screenshot.Path, "bytes", res.Screenshot.Size)
			}

			out := res.HTML
			if cmd.Bool("report") {
				renderer := report.New(cfg.Server.PublicPrefix, cfg.Relay.ProxyLinks)
				if out, err = renderer.Render(in); err != nil {
					return err
				}
			}

			_, err = fmt.Fprintln(os.Stdout, out)
			return err
		},
	}
}
