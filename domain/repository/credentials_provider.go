package repository

import (
	"context"

	"github.com/ca-srg/autoloadwatch/domain/entity"
)

// CredentialsProvider supplies warehouse credentials. Fields a provider
// does not know are left empty.
type CredentialsProvider interface {
	// Name identifies the provider in logs
	Name() string

	// Credentials returns the credentials known to this provider
	Credentials() (*entity.ServiceCredentials, error)
}

// AccessTokenProvider returns bearer tokens for the warehouse API
type AccessTokenProvider interface {
	// AccessToken returns a cached token or exchanges a new one
	AccessToken(ctx context.Context, creds *entity.ServiceCredentials) (string, error)

	// Invalidate drops the cached token
	Invalidate()
}
