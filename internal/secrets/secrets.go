// Package secrets resolves configuration values that reference AWS Secrets Manager.
//
// A value of the form "secretsmanager:<secret-id>" is replaced by the secret string of that
// secret. A value of the form "secretsmanager:<secret-id>#<json-key>" selects one key of a
// JSON secret. Any other value is returned unchanged.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Prefix marks a value as a secret reference.
const Prefix = "secretsmanager:"

// Client is the subset of the Secrets Manager API used by Resolver.
type Client interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// IsReference reports whether v references a secret.
func IsReference(v string) bool {
	return strings.HasPrefix(v, Prefix)
}

// Resolver resolves secret references. Secrets are fetched at most once per resolver.
type Resolver struct {
	client Client
	cache  map[string]string
}

// NewResolver creates a Resolver backed by client.
func NewResolver(client Client) *Resolver {
	return &Resolver{client: client, cache: make(map[string]string)}
}

// NewAWSResolver creates a Resolver using the default AWS credential chain in region.
func NewAWSResolver(ctx context.Context, region string) (*Resolver, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return NewResolver(secretsmanager.NewFromConfig(cfg)), nil
}

// Resolve returns v, or the secret it references.
func (r *Resolver) Resolve(ctx context.Context, v string) (string, error) {
	if !IsReference(v) {
		return v, nil
	}

	id, key, _ := strings.Cut(strings.TrimPrefix(v, Prefix), "#")
	if id == "" {
		return "", errors.New("secret reference has no secret id")
	}

	secret, err := r.fetch(ctx, id)
	if err != nil {
		return "", err
	}
	if key == "" {
		return secret, nil
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(secret), &fields); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", id, err)
	}
	value, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("secret %s has no key %q", id, key)
	}

	return value, nil
}

// ResolveAll resolves every pointed-to value in place.
func (r *Resolver) ResolveAll(ctx context.Context, values ...*string) error {
	for _, v := range values {
		resolved, err := r.Resolve(ctx, *v)
		if err != nil {
			return err
		}
		*v = resolved
	}

	return nil
}

func (r *Resolver) fetch(ctx context.Context, id string) (string, error) {
	if s, ok := r.cache[id]; ok {
		return s, nil
	}

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", id)
	}

	r.cache[id] = *out.SecretString

	return *out.SecretString, nil
}
