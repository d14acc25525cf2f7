package auth

import (
	"fmt"
	"strings"

	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

// ConfigCredentialsProvider returns the fields set explicitly in the
// warehouse configuration (JSON file and environment, already merged)
type ConfigCredentialsProvider struct {
	cfg *config.WarehouseConfig
}

// NewConfigCredentialsProvider creates a provider backed by WarehouseConfig
func NewConfigCredentialsProvider(cfg *config.WarehouseConfig) *ConfigCredentialsProvider {
	return &ConfigCredentialsProvider{cfg: cfg}
}

// Name implements repository.CredentialsProvider
func (p *ConfigCredentialsProvider) Name() string { return "config" }

// Credentials implements repository.CredentialsProvider
func (p *ConfigCredentialsProvider) Credentials() (*entity.ServiceCredentials, error) {
	if p.cfg == nil {
		return &entity.ServiceCredentials{}, nil
	}
	creds := &entity.ServiceCredentials{
		ProjectID:    p.cfg.ProjectID,
		DatasetID:    p.cfg.DatasetID,
		TableID:      p.cfg.TableID,
		ClientEmail:  p.cfg.ClientEmail,
		PrivateKey:   config.NormalizePrivateKey(p.cfg.PrivateKey),
		PrivateKeyID: p.cfg.PrivateKeyID,
	}
	// the stock endpoint is a default, not an explicit choice
	if p.cfg.TokenURI != config.DefaultTokenURI {
		creds.TokenURI = p.cfg.TokenURI
	}
	return creds, nil
}

// KeyFileCredentialsProvider reads a service account key, inline JSON first
type KeyFileCredentialsProvider struct {
	path       string
	inlineJSON string
}

// NewKeyFileCredentialsProvider creates a provider for a key file path and/or inline key JSON
func NewKeyFileCredentialsProvider(path, inlineJSON string) *KeyFileCredentialsProvider {
	return &KeyFileCredentialsProvider{path: path, inlineJSON: inlineJSON}
}

// Name implements repository.CredentialsProvider
func (p *KeyFileCredentialsProvider) Name() string { return "service_account_key" }

// Credentials implements repository.CredentialsProvider
func (p *KeyFileCredentialsProvider) Credentials() (*entity.ServiceCredentials, error) {
	var (
		key *ServiceAccountKey
		err error
	)
	switch {
	case strings.TrimSpace(p.inlineJSON) != "":
		key, err = ParseServiceAccountKey([]byte(p.inlineJSON))
	case p.path != "":
		key, err = LoadServiceAccountKeyFile(p.path)
	default:
		return &entity.ServiceCredentials{}, nil
	}
	if err != nil {
		return nil, err
	}

	return &entity.ServiceCredentials{
		ProjectID:    key.ProjectID,
		ClientEmail:  key.ClientEmail,
		PrivateKey:   key.PrivateKey,
		PrivateKeyID: key.PrivateKeyID,
		TokenURI:     key.TokenURI,
	}, nil
}

// DefaultCredentialsProvider supplies fallbacks such as the public token endpoint
type DefaultCredentialsProvider struct {
	tokenURI string
}

// NewDefaultCredentialsProvider creates a fallback provider
func NewDefaultCredentialsProvider(tokenURI string) *DefaultCredentialsProvider {
	if tokenURI == "" {
		tokenURI = config.DefaultTokenURI
	}
	return &DefaultCredentialsProvider{tokenURI: tokenURI}
}

// Name implements repository.CredentialsProvider
func (p *DefaultCredentialsProvider) Name() string { return "default" }

// Credentials implements repository.CredentialsProvider
func (p *DefaultCredentialsProvider) Credentials() (*entity.ServiceCredentials, error) {
	return &entity.ServiceCredentials{TokenURI: p.tokenURI}, nil
}

// ChainCredentialsProvider queries providers in order and keeps, per field,
// the first non-empty value.
type ChainCredentialsProvider struct {
	providers []repository.CredentialsProvider
}

// NewChainCredentialsProvider creates an ordered resolver
func NewChainCredentialsProvider(providers ...repository.CredentialsProvider) *ChainCredentialsProvider {
	return &ChainCredentialsProvider{providers: providers}
}

// NewWarehouseCredentialsProvider builds the standard chain:
// explicit configuration, then the service account key, then defaults.
func NewWarehouseCredentialsProvider(cfg *config.WarehouseConfig) *ChainCredentialsProvider {
	tokenURI := ""
	if cfg != nil {
		tokenURI = cfg.TokenURI
	}
	var keyPath, keyJSON string
	if cfg != nil {
		keyPath, keyJSON = cfg.CredentialsFile, cfg.CredentialsJSON
	}
	return NewChainCredentialsProvider(
		NewConfigCredentialsProvider(cfg),
		NewKeyFileCredentialsProvider(keyPath, keyJSON),
		NewDefaultCredentialsProvider(tokenURI),
	)
}

// Name implements repository.CredentialsProvider
func (c *ChainCredentialsProvider) Name() string { return "chain" }

// Credentials implements repository.CredentialsProvider
func (c *ChainCredentialsProvider) Credentials() (*entity.ServiceCredentials, error) {
	merged := &entity.ServiceCredentials{}
	for _, p := range c.providers {
		creds, err := p.Credentials()
		if err != nil {
			return nil, fmt.Errorf("credentials provider %s: %w", p.Name(), err)
		}
		fill(&merged.ProjectID, creds.ProjectID)
		fill(&merged.DatasetID, creds.DatasetID)
		fill(&merged.TableID, creds.TableID)
		fill(&merged.ClientEmail, creds.ClientEmail)
		fill(&merged.PrivateKey, creds.PrivateKey)
		fill(&merged.PrivateKeyID, creds.PrivateKeyID)
		fill(&merged.TokenURI, creds.TokenURI)
	}
	return merged, nil
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}
