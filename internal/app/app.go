// Package app assembles the host server from configuration. It is shared by
// the standalone and Lambda entry points.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"prompt-form/internal/config"
	"prompt-form/internal/integrations/paramstore"
	"prompt-form/internal/middleware"
	"prompt-form/internal/proxy"
	"prompt-form/internal/server"
)

// AWSConfigLoader loads the SDK configuration; config.LoadDefaultConfig in
// production.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

func DefaultAWSConfig(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// NewLogger returns a JSON logger at the configured level.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level()}))
}

// NewServer builds the proxy and router described by cfg.
func NewServer(ctx context.Context, cfg *config.Config, loadAWS AWSConfigLoader, logger *slog.Logger) (*server.Server, error) {
	tokens, err := tokenSource(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, err
	}

	fwd, err := proxy.New(cfg.UpstreamURL,
		proxy.WithTokenSource(tokens),
		proxy.WithTimeout(cfg.UpstreamTimeout),
		proxy.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("forwarding generation requests", "target", fwd.Target())

	trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		Addr:            cfg.ListenAddress,
		StaticDir:       cfg.StaticDir,
		RateLimitPerMin: cfg.RateLimitPerMinute,
		RateLimitBurst:  cfg.RateLimitBurst,
		UpstreamTimeout: cfg.UpstreamTimeout,
		TrustedProxies:  trusted,
	}, fwd, logger)
}

// tokenSource prefers an explicit UPSTREAM_TOKEN, then the parameter store
// when PARAM_PREFIX is set, and otherwise sends no token.
func tokenSource(ctx context.Context, cfg *config.Config, loadAWS AWSConfigLoader, logger *slog.Logger) (proxy.TokenSource, error) {
	if cfg.UpstreamToken != "" {
		return proxy.StaticToken(cfg.UpstreamToken), nil
	}
	if cfg.ParamPrefix == "" {
		return proxy.StaticToken(""), nil
	}
	if loadAWS == nil {
		loadAWS = DefaultAWSConfig
	}

	awsCfg, err := loadAWS(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load aws config: %w", err)
	}
	client, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	ts, err := paramstore.NewTokenSource(client, cfg.ParamPrefix)
	if err != nil {
		return nil, err
	}
	logger.Info("upstream token from parameter store", "prefix", cfg.ParamPrefix)
	return ts, nil
}
