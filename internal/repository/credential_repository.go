package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cjg131/backtester-v1/internal/apperrors"
	"github.com/cjg131/backtester-v1/internal/model"
)

// CredentialRepository provides data access methods for the
// provider_credential table. Keys are stored encrypted; this layer never
// sees plaintext.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new CredentialRepository with the provided database connection.
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// UpsertCredential stores or replaces the encrypted key for a provider.
func (s *CredentialRepository) UpsertCredential(provider, encryptedKey string) error {
	_, err := s.db.Exec(`
		INSERT INTO provider_credential (provider, encrypted_key, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			encrypted_key = excluded.encrypted_key,
			updated_at = excluded.updated_at
	`, provider, encryptedKey, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert provider_credential: %w", err)
	}
	return nil
}

// GetCredential retrieves the encrypted key for a provider.
func (s *CredentialRepository) GetCredential(provider string) (model.ProviderCredential, string, error) {
	var cred model.ProviderCredential
	var encryptedKey, updatedStr string

	err := s.db.QueryRow(`
		SELECT provider, encrypted_key, updated_at
		FROM provider_credential
		WHERE provider = ?
	`, provider).Scan(&cred.Provider, &encryptedKey, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProviderCredential{}, "", apperrors.ErrCredentialNotFound
	}
	if err != nil {
		return model.ProviderCredential{}, "", fmt.Errorf("failed to query provider_credential: %w", err)
	}

	cred.UpdatedAt, err = ParseTime(updatedStr)
	if err != nil {
		return model.ProviderCredential{}, "", fmt.Errorf("failed to parse credential updated_at: %w", err)
	}

	return cred, encryptedKey, nil
}

// DeleteCredential removes a provider's stored key.
func (s *CredentialRepository) DeleteCredential(provider string) error {
	result, err := s.db.Exec(`DELETE FROM provider_credential WHERE provider = ?`, provider)
	if err != nil {
		return fmt.Errorf("failed to delete provider_credential: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrCredentialNotFound
	}

	return nil
}
