package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/sharefund/backend/internal/config"
	"github.com/sharefund/backend/internal/ledger"
)

// CertificateService renders printable ownership certificates to disk.
// Each artifact is a text body plus a QR code of the holder identifier, so
// a printed certificate can be scanned straight into the verification page.
// The ledger only records download classifications; generation itself keeps
// no state and overwrites are idempotent.
type CertificateService struct {
	cfg       *config.LedgerConfig
	ledgerCfg ledger.Config
}

func NewCertificateService(cfg *config.LedgerConfig, ledgerCfg ledger.Config) *CertificateService {
	return &CertificateService{cfg: cfg, ledgerCfg: ledgerCfg}
}

// FileName returns the artifact name for an account, derived from the
// holder name the way the certificate templates expect it.
func (s *CertificateService) FileName(acct *ledger.Account) string {
	base := strings.ReplaceAll(strings.TrimSpace(acct.Name), " ", "_")
	if base == "" {
		base = acct.ID
	}
	return base + ".txt"
}

// Cost returns the certificate price for a kind; unknown kinds cost nothing.
func (s *CertificateService) Cost(kind string) int64 {
	switch kind {
	case ledger.CertificateSmall:
		return s.cfg.SmallCertCost
	case ledger.CertificateLarge:
		return s.cfg.LargeCertCost
	}
	return 0
}

// Generate writes the certificate body and its QR companion for the account
// and returns the path of the body file. Small-card certificates land in a
// cards/ subdirectory, large ones at the top level.
func (s *CertificateService) Generate(acct *ledger.Account) (string, error) {
	dir := s.cfg.CertificateDir
	if acct.CertificateKind == ledger.CertificateSmall {
		dir = filepath.Join(dir, "cards")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating certificate directory: %w", err)
	}

	fileName := s.FileName(acct)
	bodyPath := filepath.Join(dir, fileName)
	qrPath := strings.TrimSuffix(bodyPath, ".txt") + "_qr.png"

	shares := s.ledgerCfg.SharesOf(acct.Balance)
	body := fmt.Sprintf(
		"CERTIFICATE OF PROFIT SHARES\n\nHolder: %s\nIdentifier: %s\nShares: %d\nInvested: %d\nResale Value: %d\nCertificate: %s\nIssued: %s\n",
		acct.Name, acct.ID, shares, acct.Balance, acct.ResaleValue,
		acct.CertificateKind, acct.CreatedAt.Format("2006-01-02"),
	)

	if err := os.WriteFile(bodyPath, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("writing certificate: %w", err)
	}

	if err := qrcode.WriteFile(acct.ID, qrcode.Medium, 256, qrPath); err != nil {
		return "", fmt.Errorf("writing certificate QR: %w", err)
	}

	return bodyPath, nil
}
