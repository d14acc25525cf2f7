package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
)

// ServiceAccountKey represents the structure of a Google Cloud service account key
type ServiceAccountKey struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
}

// ParseServiceAccountKey parses and validates a service account key JSON document
func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	if err := validateServiceAccountKey(&key); err != nil {
		return nil, err
	}

	// must also be accepted by the google JWT flow
	if _, err := google.JWTConfigFromJSON(data); err != nil {
		return nil, fmt.Errorf("service account key rejected: %w", err)
	}

	return &key, nil
}

// LoadServiceAccountKeyFile reads and validates a service account key file
func LoadServiceAccountKeyFile(path string) (*ServiceAccountKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key file: %w", err)
	}
	return ParseServiceAccountKey(data)
}

// validateServiceAccountKey validates required fields in service account key
func validateServiceAccountKey(key *ServiceAccountKey) error {
	if key.Type != "service_account" {
		return fmt.Errorf("invalid service account type: %s (expected 'service_account')", key.Type)
	}

	if key.ProjectID == "" {
		return fmt.Errorf("service account key missing required field: project_id")
	}

	if key.PrivateKey == "" {
		return fmt.Errorf("service account key missing required field: private_key")
	}

	if key.ClientEmail == "" {
		return fmt.Errorf("service account key missing required field: client_email")
	}

	return nil
}

// ValidatePrivateKey checks that key is a PEM encoded RSA key in PKCS#8 or PKCS#1 form
func ValidatePrivateKey(key string) error {
	block, _ := pem.Decode([]byte(key))
	if block == nil {
		return fmt.Errorf("private key is not PEM encoded")
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if _, ok := parsed.(*rsa.PrivateKey); !ok {
			return fmt.Errorf("unsupported private key type %T", parsed)
		}
		return nil
	}

	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
		return fmt.Errorf("private key is neither PKCS#8 nor PKCS#1: %w", err)
	}
	return nil
}
