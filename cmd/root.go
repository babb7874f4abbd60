package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/imgfetch/internal/config"
	"github.com/sells-group/imgfetch/internal/imagefetch"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "imgfetch",
	Short: "Fetch and decode remote images",
	Long:  "Downloads remote images over HTTP, accepts only status 200 responses, decodes PNG/JPEG/GIF/BMP/TIFF/WebP bodies and reports their format and dimensions.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// newFetcher builds the image fetcher from the loaded config.
func newFetcher() *imagefetch.Fetcher {
	return imagefetch.New(imagefetch.Options{
		UserAgent:           cfg.Fetch.UserAgent,
		MaxIdleConnsPerHost: cfg.Fetch.MaxIdleConnsPerHost,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
