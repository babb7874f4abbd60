package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/imgfetch/internal/imagefetch"
)

var fetchOut string

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Fetch a single image and print its summary",
	Long:  "Fetches one image. Without an argument the configured fetch.default_url is used.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		bound, err := bindTarget(args)
		if err != nil {
			return err
		}

		img, err := bound.Fetch(ctx)
		if err != nil {
			d := describeError(err)
			zap.L().Error("image fetch failed",
				zap.String("url", bound.URL()),
				zap.String("kind", d.Kind),
				zap.Int("status", d.Status),
				zap.Error(err),
			)
			return err
		}

		if fetchOut != "" {
			if err := os.WriteFile(fetchOut, img.Data, 0o644); err != nil {
				return eris.Wrap(err, "fetch: write output")
			}
			zap.L().Info("image written", zap.String("path", fetchOut), zap.Int("bytes", len(img.Data)))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summarize(img))
	},
}

// bindTarget binds the url argument, or fetch.default_url when none is given.
// The default is only validated when it is the url being fetched.
func bindTarget(args []string) (*imagefetch.BoundFetcher, error) {
	f := newFetcher()
	if len(args) == 1 {
		return f.Bind(args[0])
	}
	if cfg.Fetch.DefaultURL == "" {
		return nil, eris.New("fetch: no url given and fetch.default_url is empty")
	}
	bound, err := f.Bind(cfg.Fetch.DefaultURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: fetch.default_url")
	}
	return bound, nil
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "write the raw image bytes to this path")
	rootCmd.AddCommand(fetchCmd)
}
