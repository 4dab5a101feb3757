package service

import (
	"database/sql"

	"github.com/cjg131/backtester-v1/internal/database"
)

// AppVersion is the reported application version.
const AppVersion = "1.0.0"

// VersionInfo describes the application and schema versions.
type VersionInfo struct {
	AppVersion string `json:"app_version"`
	DBVersion  int64  `json:"db_version"`
}

// SystemService handles system-related operations
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{
		db: db,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion returns the application and schema versions.
func (s *SystemService) CheckVersion() (VersionInfo, error) {
	dbVersion, err := database.Version(s.db)
	if err != nil {
		return VersionInfo{}, err
	}
	return VersionInfo{
		AppVersion: AppVersion,
		DBVersion:  dbVersion,
	}, nil
}
