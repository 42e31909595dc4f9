// Package paramstore reads secrets from AWS Systems Manager Parameter Store.
package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// TokenParameter is the name, under the configured prefix, of the upstream
// bearer token.
const TokenParameter = "/generation-token"

// ssmAPI is the subset of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client fetches decrypted parameter values.
type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", name)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// TokenSource resolves a bearer token stored as {"token":"..."} once per
// process. A failed fetch is retried on the next call.
type TokenSource struct {
	getter Getter
	name   string

	mu    sync.Mutex
	token string
}

func NewTokenSource(getter Getter, prefix string) (*TokenSource, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("paramstore: parameter prefix must not be empty")
	}
	return &TokenSource{getter: getter, name: prefix + TokenParameter}, nil
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}

	raw, err := s.getter.GetParameter(ctx, s.name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch token: %w", err)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal token value as JSON: %w", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return "", errors.New("paramstore: token is empty")
	}
	s.token = payload.Token
	return s.token, nil
}
