package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/imgfetch/internal/imagefetch"
)

var (
	batchFile        string
	batchFormat      string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch [urls...]",
	Short: "Fetch many images concurrently and print a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchFormat != "" {
			cfg.Batch.Format = batchFormat
		}
		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		urls := append([]string(nil), args...)
		if batchFile != "" {
			f, err := os.Open(batchFile)
			if err != nil {
				return eris.Wrap(err, "batch: open url file")
			}
			fromFile, err := readURLList(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return eris.New("batch: no urls given")
		}

		limiters := newHostLimiters(rate.Limit(cfg.Batch.RatePerHost))
		entries, err := processBatch(ctx, urls, cfg.Batch.Concurrency, limiters, newFetcher().Fetch)
		if err != nil {
			return err
		}
		return writeReport(cmd.OutOrStdout(), cfg.Batch.Format, entries)
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "file with one url per line")
	batchCmd.Flags().StringVar(&batchFormat, "format", "", "report format: json or yaml (default from config)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent fetches (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// fetchFunc is the signature of a single image fetch.
type fetchFunc func(ctx context.Context, rawURL string) (*imagefetch.Image, error)

// batchEntry is one line of the batch report. Exactly one of Image and
// Error is set.
type batchEntry struct {
	URL   string        `json:"url" yaml:"url"`
	Image *imageSummary `json:"image,omitempty" yaml:"image,omitempty"`
	Error *errorSummary `json:"error,omitempty" yaml:"error,omitempty"`
}

// readURLList reads one url per line, skipping blanks and # comments.
func readURLList(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "batch: read url list")
	}
	return urls, nil
}

// hostLimiters paces requests per host. A zero limit disables pacing.
type hostLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	limiters map[string]*rate.Limiter
}

func newHostLimiters(limit rate.Limit) *hostLimiters {
	return &hostLimiters{limit: limit, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until a request to rawURL's host may start. URLs that do not
// parse are not paced; the fetch rejects them without a request.
func (h *hostLimiters) Wait(ctx context.Context, rawURL string) error {
	if h == nil || h.limit <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}

	h.mu.Lock()
	lim, ok := h.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(h.limit, 1)
		h.limiters[u.Host] = lim
	}
	h.mu.Unlock()

	return lim.Wait(ctx)
}

// processBatch fetches every url with at most concurrency fetches in flight.
// Individual failures are recorded in the report and do not stop the batch.
// Entries come back in input order.
func processBatch(ctx context.Context, urls []string, concurrency int, limiters *hostLimiters, fetch fetchFunc) ([]batchEntry, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))

	log.Info("processing batch",
		zap.Int("urls", len(urls)),
		zap.Int("concurrency", concurrency),
	)

	entries := make([]batchEntry, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, raw := range urls {
		g.Go(func() error {
			entries[i].URL = raw

			if err := limiters.Wait(gctx, raw); err != nil {
				failed.Add(1)
				entries[i].Error = &errorSummary{Kind: "rate_limit", Error: eris.Wrap(err, "rate limiter wait").Error()}
				log.Warn("rate limiter wait failed", zap.String("url", raw), zap.Error(err))
				return nil
			}

			img, err := fetch(gctx, raw)
			if err != nil {
				failed.Add(1)
				d := describeError(err)
				entries[i].Error = &d
				log.Warn("image fetch failed",
					zap.String("url", raw),
					zap.String("kind", d.Kind),
					zap.Error(err),
				)
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			s := summarize(img)
			entries[i].Image = &s
			log.Info("image fetched",
				zap.String("url", raw),
				zap.String("format", s.Format),
				zap.Int("width", s.Width),
				zap.Int("height", s.Height),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	log.Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return entries, nil
}

func writeReport(w io.Writer, format string, entries []batchEntry) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return eris.Wrap(err, "batch: encode yaml report")
		}
		return eris.Wrap(enc.Close(), "batch: flush yaml report")
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(entries), "batch: encode json report")
	default:
		return eris.Errorf("batch: unknown report format %q", format)
	}
}
