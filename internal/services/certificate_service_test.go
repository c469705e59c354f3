package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sharefund/backend/internal/config"
	"github.com/sharefund/backend/internal/ledger"
)

func newTestCertService(t *testing.T) *CertificateService {
	t.Helper()
	cfg := config.LoadLedgerConfig()
	cfg.CertificateDir = t.TempDir()
	return NewCertificateService(cfg, testCfg)
}

func TestCertificateService_Generate(t *testing.T) {
	service := newTestCertService(t)

	acct := &ledger.Account{
		ID:              "aB3x_9",
		Name:            "Asha Kumari",
		Balance:         1500,
		ResaleValue:     1440,
		CertificateKind: ledger.CertificateLarge,
		CreatedAt:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	path, err := service.Generate(acct)
	assert.NoError(t, err)
	assert.Equal(t, "Asha_Kumari.txt", filepath.Base(path))

	body, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(body), "Asha Kumari")
	assert.Contains(t, string(body), "aB3x_9")
	assert.Contains(t, string(body), "Shares: 3")

	// QR companion encodes the verification identifier
	qrPath := filepath.Join(filepath.Dir(path), "Asha_Kumari_qr.png")
	_, err = os.Stat(qrPath)
	assert.NoError(t, err)
}

func TestCertificateService_Generate_SmallCardSubdir(t *testing.T) {
	service := newTestCertService(t)

	acct := &ledger.Account{
		ID: "cD4e!_", Name: "Ravi", Balance: 500, ResaleValue: 480,
		CertificateKind: ledger.CertificateSmall, CreatedAt: time.Now(),
	}

	path, err := service.Generate(acct)
	assert.NoError(t, err)
	assert.Equal(t, "cards", filepath.Base(filepath.Dir(path)))

	// regeneration overwrites in place
	again, err := service.Generate(acct)
	assert.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestCertificateService_Cost(t *testing.T) {
	service := newTestCertService(t)

	assert.Equal(t, int64(40), service.Cost(ledger.CertificateSmall))
	assert.Equal(t, int64(80), service.Cost(ledger.CertificateLarge))
	assert.Equal(t, int64(0), service.Cost(ledger.CertificateNone))
}
