package imagefetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "imgfetch/1.0"

// drainLimit caps how much of a rejected body is read so the connection can
// be reused.
const drainLimit = 64 << 10

// Doer issues HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Fetcher.
type Options struct {
	UserAgent           string
	Client              Doer
	MaxIdleConnsPerHost int
	Logger              *zap.Logger
}

// Fetcher downloads and decodes remote images. It holds no per-call state
// and is safe for concurrent use.
type Fetcher struct {
	client    Doer
	userAgent string
	log       *zap.Logger
}

// New creates a Fetcher. Without a Client it uses an *http.Client with no
// overall timeout, so the transport defaults apply.
func New(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxIdleConnsPerHost == 0 {
		opts.MaxIdleConnsPerHost = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	client := opts.Client
	if client == nil {
		client = newHTTPClient(opts.MaxIdleConnsPerHost)
	}
	return &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}
}

func newHTTPClient(maxIdlePerHost int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = maxIdlePerHost
	return &http.Client{Transport: transport}
}

// Fetch performs one GET against rawURL and decodes the body. The response
// must have status 200 exactly. Errors are always *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	req, err := ParseRequest(rawURL)
	if err != nil {
		return nil, err
	}
	return f.do(ctx, req)
}

func (f *Fetcher) do(ctx context.Context, r Request) (*Image, error) {
	raw := r.String()
	log := f.log.With(zap.String("url", raw))
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, invalidURLError(raw, eris.Wrap(err, "create request"))
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		fe := networkError(raw, err)
		log.Debug("image fetch: transport failed",
			zap.String("reason", string(fe.Reason)),
			zap.Error(err),
		)
		return nil, fe
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
		log.Debug("image fetch: rejected status", zap.Int("status", resp.StatusCode))
		return nil, statusError(raw, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fe := networkError(raw, eris.Wrap(err, "read body"))
		log.Debug("image fetch: body read failed",
			zap.String("reason", string(fe.Reason)),
			zap.Error(err),
		)
		return nil, fe
	}

	img, format, err := decode(data)
	if err != nil {
		log.Debug("image fetch: decode failed", zap.Int("bytes", len(data)), zap.Error(err))
		return nil, decodeError(raw, err)
	}

	out := &Image{
		URL:         raw,
		ContentType: resp.Header.Get("Content-Type"),
		Format:      format,
		Data:        data,
		Decoded:     img,
	}
	log.Debug("image fetch: complete",
		zap.String("format", format),
		zap.Int("width", out.Width()),
		zap.Int("height", out.Height()),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// BoundFetcher fetches a single URL fixed at construction.
type BoundFetcher struct {
	f   *Fetcher
	req Request
}

// Bind validates rawURL now and returns a fetcher for it.
func (f *Fetcher) Bind(rawURL string) (*BoundFetcher, error) {
	req, err := ParseRequest(rawURL)
	if err != nil {
		return nil, err
	}
	return &BoundFetcher{f: f, req: req}, nil
}

// URL returns the bound target.
func (b *BoundFetcher) URL() string {
	return b.req.String()
}

// Fetch fetches the bound URL.
func (b *BoundFetcher) Fetch(ctx context.Context) (*Image, error) {
	return b.f.do(ctx, b.req)
}
