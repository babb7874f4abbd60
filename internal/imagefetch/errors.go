package imagefetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// Kind identifies which phase of a fetch failed.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors not produced by a Fetcher.
	KindUnknown Kind = iota
	// KindInvalidURL means the URL was rejected before any request was made.
	KindInvalidURL
	// KindNetwork means the transport failed to complete the exchange.
	KindNetwork
	// KindHTTPStatus means the server answered with a status other than 200.
	KindHTTPStatus
	// KindDecode means the body could not be decoded as an image.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindNetwork:
		return "network"
	case KindHTTPStatus:
		return "http_status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrInvalidURL = eris.New("invalid url")
	ErrNetwork    = eris.New("network error")
	ErrHTTPStatus = eris.New("unexpected http status")
	ErrDecode     = eris.New("image decode failed")
)

// NetworkReason classifies a transport failure for logging.
type NetworkReason string

// Network failure classes.
const (
	ReasonCanceled NetworkReason = "canceled"
	ReasonTimeout  NetworkReason = "timeout"
	ReasonDNS      NetworkReason = "dns"
	ReasonRefused  NetworkReason = "refused"
	ReasonReset    NetworkReason = "reset"
	ReasonTLS      NetworkReason = "tls"
	ReasonOther    NetworkReason = "other"
)

// Error is the failure returned by every Fetcher operation.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int           // set for KindHTTPStatus
	Reason     NetworkReason // set for KindNetwork
	Cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("imagefetch: unexpected status %d from %s", e.StatusCode, e.URL)
	case KindNetwork:
		return fmt.Sprintf("imagefetch: network error (%s) fetching %s: %v", e.Reason, e.URL, e.Cause)
	case KindInvalidURL:
		return fmt.Sprintf("imagefetch: invalid url %q: %v", e.URL, e.Cause)
	default:
		return fmt.Sprintf("imagefetch: %s %s: %v", e.Kind, e.URL, e.Cause)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the package sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidURL:
		return e.Kind == KindInvalidURL
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindHTTPStatus {
		return fe.StatusCode
	}
	return 0
}

func invalidURLError(raw string, cause error) *Error {
	return &Error{Kind: KindInvalidURL, URL: raw, Cause: cause}
}

func networkError(raw string, cause error) *Error {
	return &Error{Kind: KindNetwork, URL: raw, Reason: classifyNetwork(cause), Cause: cause}
}

func statusError(raw string, code int) *Error {
	return &Error{
		Kind:       KindHTTPStatus,
		URL:        raw,
		StatusCode: code,
		Cause:      eris.Errorf("status %d", code),
	}
}

func decodeError(raw string, cause error) *Error {
	return &Error{Kind: KindDecode, URL: raw, Cause: cause}
}

// classifyNetwork maps a transport error onto a NetworkReason. Typed checks
// come first; the string patterns catch errors that lost their type while
// being wrapped by the HTTP client.
func classifyNetwork(err error) NetworkReason {
	if err == nil {
		return ReasonOther
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonDNS
	}

	var (
		recordErr  tls.RecordHeaderError
		certErr    *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	if errors.As(err, &recordErr) || errors.As(err, &certErr) ||
		errors.As(err, &unknownCA) || errors.As(err, &hostErr) || errors.As(err, &invalidErr) {
		return ReasonTLS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonRefused
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return ReasonReset
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	msg := strings.ToLower(err.Error())
	patterns := []struct {
		substr string
		reason NetworkReason
	}{
		{"context canceled", ReasonCanceled},
		{"no such host", ReasonDNS},
		{"temporary failure in name resolution", ReasonDNS},
		{"connection refused", ReasonRefused},
		{"connection reset by peer", ReasonReset},
		{"broken pipe", ReasonReset},
		{"tls:", ReasonTLS},
		{"x509:", ReasonTLS},
		{"i/o timeout", ReasonTimeout},
	}
	for _, p := range patterns {
		if strings.Contains(msg, p.substr) {
			return p.reason
		}
	}

	return ReasonOther
}
