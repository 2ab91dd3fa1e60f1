package config

import (
	"context"
	"os"
)

// SecretProvider resolves secret values by path.
type SecretProvider interface {
	// GetParametersBatch returns path -> plaintext for every path it could
	// resolve. Unresolvable paths are omitted, not reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// DefaultSecretProvider picks the provider for this process from the
// environment:
//
//	APP_ENV=local          none; pointers are not resolved
//	SECRET_PROVIDER=env    EnvVarProvider; pointers name mounted variables
//	otherwise              SSMProvider using AWS_REGION and AWS_ENDPOINT_URL
func DefaultSecretProvider() SecretProvider {
	return secretProviderFor(os.LookupEnv)
}

func secretProviderFor(lookup func(string) (string, bool)) SecretProvider {
	if env, _ := lookup("APP_ENV"); env == localEnv {
		return nil
	}
	if p, _ := lookup("SECRET_PROVIDER"); p == "env" {
		return &EnvVarProvider{lookup: lookup}
	}
	region, _ := lookup("AWS_REGION")
	endpoint, _ := lookup("AWS_ENDPOINT_URL")
	return NewSSMProvider(region, endpoint)
}
