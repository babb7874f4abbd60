package imagefetch

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Request is a validated fetch target. The zero value is not usable; build
// one with ParseRequest.
type Request struct {
	url *url.URL
}

// ParseRequest validates raw as an absolute http or https URL.
func ParseRequest(raw string) (Request, error) {
	if strings.TrimSpace(raw) == "" {
		return Request{}, invalidURLError(raw, eris.New("empty url"))
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Request{}, invalidURLError(raw, eris.Wrap(err, "parse"))
	}
	if !u.IsAbs() {
		return Request{}, invalidURLError(raw, eris.New("url is not absolute"))
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return Request{}, invalidURLError(raw, eris.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Hostname() == "" {
		return Request{}, invalidURLError(raw, eris.New("url has no host"))
	}

	return Request{url: u}, nil
}

// URL returns a copy of the target URL.
func (r Request) URL() *url.URL {
	if r.url == nil {
		return nil
	}
	u := *r.url
	return &u
}

// String returns the target URL as text.
func (r Request) String() string {
	if r.url == nil {
		return ""
	}
	return r.url.String()
}

// Host returns the host[:port] of the target.
func (r Request) Host() string {
	if r.url == nil {
		return ""
	}
	return r.url.Host
}
