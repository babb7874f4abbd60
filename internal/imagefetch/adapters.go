package imagefetch

import "context"

// FetchAsync runs Fetch on its own goroutine and hands the outcome to cb.
// cb runs at most once, and not at all if ctx is done by the time the fetch
// returns. The returned channel is closed when the goroutine exits.
func (f *Fetcher) FetchAsync(ctx context.Context, rawURL string, cb func(Result)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		img, err := f.Fetch(ctx, rawURL)
		if ctx.Err() != nil {
			return
		}
		cb(Result{Image: img, Err: err})
	}()
	return done
}

// Stream returns a channel that yields at most one Result and is then
// closed. It closes without a value if ctx is done first.
func (f *Fetcher) Stream(ctx context.Context, rawURL string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		img, err := f.Fetch(ctx, rawURL)
		if ctx.Err() != nil {
			return
		}
		out <- Result{Image: img, Err: err}
	}()
	return out
}
