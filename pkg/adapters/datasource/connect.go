package datasource

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/retry"
)

// ConnectionConfigFor resolves a target's credentials into a ConnectionConfig.
// Missing environment variables wrap apperrors.ErrMissingCredentials.
func ConnectionConfigFor(t config.Target, lookup func(string) (string, bool)) (ConnectionConfig, error) {
	creds, err := t.Credentials(lookup)
	if err != nil {
		return ConnectionConfig{}, err
	}
	return ConnectionConfig{
		Host:     creds.Host,
		Port:     t.Port,
		User:     creds.User,
		Password: creds.Password,
		Database: t.Database,
		Options:  t.Options,
	}, nil
}

// Open connects to a target, retrying transient network failures. Login
// and configuration errors fail on the first attempt.
func Open(ctx context.Context, factory DatasourceAdapterFactory, t config.Target, cc ConnectionConfig, retryCfg *retry.Config) (MetadataSource, error) {
	src, err := retry.DoWithResultIfRetryable(ctx, retryCfg, func() (MetadataSource, error) {
		return factory.NewMetadataSource(ctx, t.Type, cc)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to target %s: %w", t.Name, err)
	}
	return src, nil
}
