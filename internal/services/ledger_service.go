package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/sharefund/backend/internal/audit"
	"github.com/sharefund/backend/internal/ledger"
	"github.com/sharefund/backend/internal/store"
	"github.com/sharefund/backend/internal/uid"
)

// Download classifications recorded on repeated certificate downloads.
const (
	DownloadOriginal  = "original"
	DownloadDuplicate = "duplicate"
)

// LedgerService is the only component allowed to change a balance. Every
// mutation runs as one storage transaction covering the balance write and
// the log append, so a failed operation leaves the store untouched.
type LedgerService struct {
	store     *store.AccountStore
	allocator *uid.Allocator
	cfg       ledger.Config
	audit     *audit.Logger
}

func NewLedgerService(accountStore *store.AccountStore, allocator *uid.Allocator, cfg ledger.Config) *LedgerService {
	return &LedgerService{
		store:     accountStore,
		allocator: allocator,
		cfg:       cfg,
		audit:     audit.NewLogger(),
	}
}

// RegisterParams carries the inputs of new-investor registration.
type RegisterParams struct {
	Name            string
	Phone           string
	Email           string
	InitialAmount   int64
	CertificateKind string
}

// Register creates a new account with its identifier, initial balance,
// derived resale value and the opening investment log entry.
func (s *LedgerService) Register(ctx context.Context, p RegisterParams) (*ledger.Account, error) {
	if p.Name == "" || p.Phone == "" {
		return nil, ledger.ErrMissingField
	}
	if !s.cfg.ValidAmount(p.InitialAmount) {
		return nil, ledger.ErrInvalidAmount
	}

	accountID, err := s.allocator.Allocate(ctx)
	if err != nil {
		return nil, err
	}
	refID := uuid.New().String()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acct, err := s.store.CreateTx(tx, store.CreateParams{
		UID:             accountID,
		Name:            p.Name,
		Phone:           p.Phone,
		Email:           p.Email,
		Balance:         p.InitialAmount,
		ResaleValue:     s.cfg.ResaleValueOf(p.InitialAmount),
		CertificateKind: p.CertificateKind,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendTransactionTx(tx, ledger.Transaction{
		AccountID:   accountID,
		ReferenceID: refID,
		Kind:        ledger.TxInvestment,
		Amount:      p.InitialAmount,
		Details:     "Initial investment",
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.store.InvalidateListCache(ctx)
	s.audit.LogOperation(refID, accountID, "REGISTER", fmt.Sprintf("initial investment %d", p.InitialAmount))
	log.Printf("[LEDGER] Registered account %s with balance %d", accountID, p.InitialAmount)
	return acct, nil
}

// Reinvest adds a positive unit multiple to an existing balance and appends
// the reinvestment entry in the same storage transaction.
func (s *LedgerService) Reinvest(ctx context.Context, accountID string, addAmount int64) (*ledger.Account, error) {
	if !s.cfg.ValidAmount(addAmount) {
		return nil, ledger.ErrInvalidAmount
	}
	refID := uuid.New().String()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acct, err := s.store.LockAccountTx(tx, accountID)
	if err != nil {
		return nil, err
	}

	newBalance := acct.Balance + addAmount
	newResale := s.cfg.ResaleValueOf(newBalance)
	if err := s.store.UpdateBalanceTx(tx, acct, newBalance, newResale); err != nil {
		return nil, err
	}

	if err := s.store.AppendTransactionTx(tx, ledger.Transaction{
		AccountID:   accountID,
		ReferenceID: refID,
		Kind:        ledger.TxReinvestment,
		Amount:      addAmount,
		Details:     "Added additional investment",
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.store.InvalidateListCache(ctx)
	s.audit.LogOperation(refID, accountID, "REINVEST", fmt.Sprintf("added %d", addAmount))

	acct.Balance = newBalance
	acct.ResaleValue = newResale
	acct.Version++
	return acct, nil
}

// Transfer moves a positive unit multiple between two accounts. Both rows
// are locked in lexicographic id order inside one storage transaction, so
// either both legs apply or neither does.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID string, amount int64) error {
	if fromID == toID {
		return ledger.ErrInvalidTransfer
	}
	if !s.cfg.ValidAmount(amount) {
		return ledger.ErrInvalidAmount
	}
	refID := uuid.New().String()

	err := s.transfer(ctx, refID, fromID, toID, amount)
	if err != nil {
		s.audit.LogError(refID, fromID, err)
		return err
	}

	s.store.InvalidateListCache(ctx)
	s.audit.LogTransfer(refID, fromID, toID, amount, "SUCCESS")
	return nil
}

func (s *LedgerService) transfer(ctx context.Context, refID, fromID, toID string, amount int64) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Lock accounts in consistent order to prevent deadlocks
	firstLock, secondLock := fromID, toID
	if fromID > toID {
		firstLock, secondLock = toID, fromID
	}

	first, err := s.store.LockAccountTx(tx, firstLock)
	if err != nil {
		return err
	}
	second, err := s.store.LockAccountTx(tx, secondLock)
	if err != nil {
		return err
	}

	from, to := first, second
	if firstLock != fromID {
		from, to = second, first
	}

	if from.Balance < amount {
		return ledger.ErrInsufficientBalance
	}

	fromBalance := from.Balance - amount
	toBalance := to.Balance + amount

	if err := s.store.UpdateBalanceTx(tx, from, fromBalance, s.cfg.ResaleValueOf(fromBalance)); err != nil {
		return err
	}
	if err := s.store.UpdateBalanceTx(tx, to, toBalance, s.cfg.ResaleValueOf(toBalance)); err != nil {
		return err
	}

	if err := s.store.AppendTransactionTx(tx, ledger.Transaction{
		AccountID:   from.ID,
		ReferenceID: refID,
		Kind:        ledger.TxTransferOut,
		Amount:      -amount,
		Details:     fmt.Sprintf("Transferred to UID %s", to.ID),
	}); err != nil {
		return err
	}
	if err := s.store.AppendTransactionTx(tx, ledger.Transaction{
		AccountID:   to.ID,
		ReferenceID: refID,
		Kind:        ledger.TxTransferIn,
		Amount:      amount,
		Details:     fmt.Sprintf("Received from UID %s", from.ID),
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// Account returns a snapshot without leaving a log entry behind.
func (s *LedgerService) Account(ctx context.Context, accountID string) (*ledger.Account, error) {
	return s.store.Get(ctx, accountID)
}

// Verify is the bearer-token balance lookup. It returns the account snapshot
// with its transaction history and leaves a zero-amount audit entry behind.
func (s *LedgerService) Verify(ctx context.Context, accountID string) (*ledger.Account, []ledger.Transaction, error) {
	acct, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}

	transactions, err := s.store.Transactions(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.AppendTransaction(ctx, ledger.Transaction{
		AccountID:   accountID,
		ReferenceID: uuid.New().String(),
		Kind:        ledger.TxVerification,
		Amount:      0,
		Details:     "User verification",
	}); err != nil {
		return nil, nil, err
	}

	return acct, transactions, nil
}

// RecordCertificateDownload classifies a download of the named certificate
// file as original or duplicate and logs it. Repeat downloads are always
// permitted; only the label differs.
func (s *LedgerService) RecordCertificateDownload(ctx context.Context, accountID, fileName string) (string, error) {
	if _, err := s.store.Get(ctx, accountID); err != nil {
		return "", err
	}

	prior, err := s.store.CountCertificateDownloads(ctx, accountID, fileName)
	if err != nil {
		return "", err
	}

	classification := DownloadOriginal
	details := fmt.Sprintf("%s - Original", fileName)
	if prior > 0 {
		classification = DownloadDuplicate
		details = fmt.Sprintf("%s - Duplicate", fileName)
	}

	if err := s.store.AppendTransaction(ctx, ledger.Transaction{
		AccountID:   accountID,
		ReferenceID: uuid.New().String(),
		Kind:        ledger.TxCertificateDownload,
		Amount:      0,
		Details:     details,
	}); err != nil {
		return "", err
	}

	return classification, nil
}
