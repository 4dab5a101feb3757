package service

import (
	"fmt"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/cjg131/backtester-v1/internal/model"
	"github.com/cjg131/backtester-v1/internal/repository"
)

// CredentialService stores market-data provider API keys encrypted with
// a fernet key so the database never holds plaintext secrets.
type CredentialService struct {
	repo *repository.CredentialRepository
	key  *fernet.Key
}

// NewCredentialService creates a CredentialService from a base64-encoded
// fernet key.
func NewCredentialService(repo *repository.CredentialRepository, encodedKey string) (*CredentialService, error) {
	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid fernet key: %w", err)
	}
	return &CredentialService{repo: repo, key: key}, nil
}

// Set encrypts and stores the API key for a provider.
func (s *CredentialService) Set(provider, apiKey string) error {
	token, err := fernet.EncryptAndSign([]byte(apiKey), s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	return s.repo.UpsertCredential(provider, string(token))
}

// Get retrieves and decrypts the API key for a provider.
func (s *CredentialService) Get(provider string) (model.ProviderCredential, error) {
	cred, encryptedKey, err := s.repo.GetCredential(provider)
	if err != nil {
		return model.ProviderCredential{}, err
	}

	// TTL 0 disables token expiry: stored keys stay valid until replaced.
	plaintext := fernet.VerifyAndDecrypt([]byte(encryptedKey), time.Duration(0), []*fernet.Key{s.key})
	if plaintext == nil {
		return model.ProviderCredential{}, fmt.Errorf("failed to decrypt credential for %s", provider)
	}

	cred.APIKey = string(plaintext)
	return cred, nil
}

// Delete removes the stored key for a provider.
func (s *CredentialService) Delete(provider string) error {
	return s.repo.DeleteCredential(provider)
}
