package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cjg131/backtester-v1/internal/calendar"
	"github.com/cjg131/backtester-v1/internal/marketdata"
	"github.com/cjg131/backtester-v1/internal/repository"
	"github.com/cjg131/backtester-v1/internal/service"
)

// TestFernetKey is a fixed 32-byte fernet key for credential tests.
const TestFernetKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

// NewTestProvider returns a deterministic provider serving SPY and AGG
// on the NYSE calendar. SPY grows and pays quarterly dividends, AGG is
// flat with a small payout, which is enough to exercise every engine path.
func NewTestProvider(t *testing.T) *marketdata.SyntheticProvider {
	t.Helper()

	return marketdata.NewSyntheticProvider(calendar.NewMarket("NYSE"), map[string]marketdata.SyntheticSpec{
		"SPY": {
			StartPrice:       100,
			DailyReturn:      0.0004,
			DividendPerShare: 0.45,
			QualifiedPct:     0.95,
			ExpenseRatio:     0.0009,
		},
		"AGG": {
			StartPrice:       105,
			DividendPerShare: 0.20,
			QualifiedPct:     0,
			ExpenseRatio:     0.0003,
		},
	})
}

// NewTestSimulationService wires a simulation service against the
// synthetic provider and the given test database.
func NewTestSimulationService(t *testing.T, db *sql.DB) *service.SimulationService {
	t.Helper()

	runRepo := repository.NewRunRepository(db)

	return service.NewSimulationService(NewTestProvider(t), runRepo, zerolog.Nop())
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

func NewTestCredentialService(t *testing.T, db *sql.DB) *service.CredentialService {
	t.Helper()

	credentialService, err := service.NewCredentialService(repository.NewCredentialRepository(db), TestFernetKey)
	if err != nil {
		t.Fatalf("Failed to create credential service: %v", err)
	}

	return credentialService
}

// MakeID generates a unique UUID for test data.
func MakeID() string {
	return uuid.NewString()
}
