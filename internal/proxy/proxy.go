// Package proxy forwards generation requests from the host server to the
// upstream generation service.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"prompt-form/internal/middleware"
)

const (
	UnavailableMessage = "Failed to generate response"
	TimedOutMessage    = "Generation service timed out"

	defaultTimeout = 2 * time.Minute
)

// TokenSource yields the bearer token sent upstream. An empty token sends
// no Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a token known at startup.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

type Option func(*Proxy)

func WithTimeout(d time.Duration) Option {
	return func(p *Proxy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(p *Proxy) { p.tokens = ts }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(p *Proxy) { p.transport = rt }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Proxy) {
		if l != nil {
			p.logger = l
		}
	}
}

// Proxy is an http.Handler that sends the request body unchanged to
// <upstream>/generate.
type Proxy struct {
	target    *url.URL
	tokens    TokenSource
	timeout   time.Duration
	transport http.RoundTripper
	logger    *slog.Logger
	rp        *httputil.ReverseProxy
}

func New(upstreamURL string, opts ...Option) (*Proxy, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(upstreamURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("proxy: parse upstream url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("proxy: upstream url %q must be an absolute http(s) url", upstreamURL)
	}

	target := *base
	target.Path = base.Path + "/generate"
	target.RawPath = ""
	target.RawQuery = ""
	target.Fragment = ""

	p := &Proxy{
		target:  &target,
		tokens:  StaticToken(""),
		timeout: defaultTimeout,
		logger:  slog.Default(),
		transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ExpectContinueTimeout: time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tokens == nil {
		return nil, errors.New("proxy: token source must not be nil")
	}
	if p.transport == nil {
		return nil, errors.New("proxy: transport must not be nil")
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = p.target.Scheme
			pr.Out.URL.Host = p.target.Host
			pr.Out.URL.Path = p.target.Path
			pr.Out.URL.RawPath = ""
			pr.Out.URL.RawQuery = ""
			pr.Out.Host = p.target.Host
			pr.SetXForwarded()
		},
		Transport:    p.transport,
		ErrorHandler: p.handleError,
	}
	return p, nil
}

// Target is the upstream endpoint requests are sent to.
func (p *Proxy) Target() string { return p.target.String() }

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	token, err := p.tokens.Token(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to resolve upstream token", "err", err)
		middleware.WriteError(w, http.StatusBadGateway, UnavailableMessage)
		return
	}

	out := r.WithContext(ctx)
	out.Header = r.Header.Clone()
	out.Header.Del("Authorization")
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	p.rp.ServeHTTP(w, out)
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	// Client disconnected.
	if errors.Is(r.Context().Err(), context.Canceled) {
		p.logger.DebugContext(r.Context(), "client closed request",
			"err", err, "correlation_id", middleware.GetCorrelationID(r.Context()))
		return
	}
	if isTimeout(err) {
		p.logger.WarnContext(r.Context(), "upstream timed out",
			"err", err, "correlation_id", middleware.GetCorrelationID(r.Context()))
		middleware.WriteError(w, http.StatusGatewayTimeout, TimedOutMessage)
		return
	}
	p.logger.ErrorContext(r.Context(), "upstream request failed",
		"err", err, "correlation_id", middleware.GetCorrelationID(r.Context()))
	middleware.WriteError(w, http.StatusBadGateway, UnavailableMessage)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
