package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// tokenPayload is the JSON shape stored in SSM for provider API keys.
type tokenPayload struct {
	Token string `json:"token"`
}

// Client reads provider secrets stored as SecureString parameters.
type Client struct {
	api    ssmAPI
	prefix string
}

// New creates a Client that resolves secret names under prefix.
func New(api ssmAPI, prefix string) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("paramstore: parameter prefix must not be empty")
	}
	return &Client{api: api, prefix: prefix}, nil
}

// GetParameter returns the decrypted value of the parameter <prefix>/<name>.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	full := c.prefix + "/" + name

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &full,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", full, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// GetSecret reads <prefix>/<name> and decodes its {"token": "..."} payload.
func (c *Client) GetSecret(ctx context.Context, name string) (string, error) {
	raw, err := c.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal %q value as JSON: %w", name, err)
	}
	token := strings.TrimSpace(tp.Token)
	if token == "" {
		return "", fmt.Errorf("paramstore: secret %q is empty", name)
	}
	return token, nil
}
