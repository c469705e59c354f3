// Package store is the durable keyed storage for ledger accounts. It owns
// all SQL against the accounts, issued_identifiers, account_transactions
// and account_notes tables. The full-scan listing is served through a Redis
// cache that is invalidated on every mutating call; the database stays the
// source of truth.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"

	"github.com/sharefund/backend/internal/ledger"
)

const (
	listCacheKey = "accounts:all"
	listCacheTTL = 5 * time.Minute
)

// Columns an administrator may edit through UpdateField. The identifier and
// creation timestamp are deliberately absent.
var editableFields = map[string]string{
	"name":             "name",
	"phone":            "phone_hash",
	"email":            "email_hash",
	"certificate_kind": "certificate_kind",
}

type AccountStore struct {
	db       *sql.DB
	redis    *redis.Client
	cfg      ledger.Config
	validate *validator.Validate
}

func NewAccountStore(db *sql.DB, redisClient *redis.Client, cfg ledger.Config) *AccountStore {
	return &AccountStore{
		db:       db,
		redis:    redisClient,
		cfg:      cfg,
		validate: validator.New(),
	}
}

// CreateParams carries the plaintext inputs of account creation. Phone and
// email are fingerprinted before they touch the database.
type CreateParams struct {
	UID             string
	Name            string
	Phone           string
	Email           string
	Balance         int64
	ResaleValue     int64
	CertificateKind string
}

// Create inserts a new account and records its identifier as issued forever.
func (s *AccountStore) Create(ctx context.Context, p CreateParams) (*ledger.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acct, err := s.CreateTx(tx, p)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.invalidateListCache(ctx)
	return acct, nil
}

// CreateTx is the transaction-scoped variant of Create, used by the ledger
// service to bundle creation with the initial investment log entry.
func (s *AccountStore) CreateTx(tx *sql.Tx, p CreateParams) (*ledger.Account, error) {
	if p.Balance < 0 || p.Balance%s.cfg.UnitAmount != 0 {
		return nil, ledger.ErrInvalidAmount
	}
	if p.Email != "" {
		if err := s.validate.Var(p.Email, "email"); err != nil {
			return nil, ledger.ErrInvalidEmail
		}
	}

	certKind := p.CertificateKind
	if certKind == "" {
		certKind = ledger.CertificateNone
	}

	acct := &ledger.Account{
		ID:               p.UID,
		Name:             p.Name,
		PhoneFingerprint: ledger.Fingerprint(p.Phone),
		Balance:          p.Balance,
		ResaleValue:      p.ResaleValue,
		CertificateKind:  certKind,
		Version:          1,
		CreatedAt:        time.Now(),
	}
	var emailHash sql.NullString
	if p.Email != "" {
		acct.EmailFingerprint = ledger.Fingerprint(p.Email)
		emailHash = sql.NullString{String: acct.EmailFingerprint, Valid: true}
	}

	_, err := tx.Exec(`
		INSERT INTO accounts (uid, name, phone_hash, email_hash, balance, resale_value, certificate_kind, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)`,
		acct.ID, acct.Name, acct.PhoneFingerprint, emailHash, acct.Balance, acct.ResaleValue, acct.CertificateKind, acct.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ledger.ErrDuplicateIdentifier
		}
		return nil, err
	}

	// Identifier stays reserved even if the account is deleted later.
	if _, err := tx.Exec(`
		INSERT INTO issued_identifiers (uid, issued_at)
		VALUES ($1, $2) ON CONFLICT (uid) DO NOTHING`,
		acct.ID, acct.CreatedAt); err != nil {
		return nil, err
	}

	return acct, nil
}

// Get returns the account snapshot for uid.
func (s *AccountStore) Get(ctx context.Context, uid string) (*ledger.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, name, phone_hash, email_hash, balance, resale_value, certificate_kind, version, created_at, updated_at
		FROM accounts WHERE uid = $1`, uid)
	return scanAccount(row)
}

// List returns every account, served from the cache when possible.
func (s *AccountStore) List(ctx context.Context) ([]ledger.Account, error) {
	if s.redis != nil {
		if data, err := s.redis.Get(ctx, listCacheKey).Bytes(); err == nil {
			var cached []ledger.Account
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, name, phone_hash, email_hash, balance, resale_value, certificate_kind, version, created_at, updated_at
		FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]ledger.Account, 0)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(accounts); err == nil {
			if err := s.redis.Set(ctx, listCacheKey, data, listCacheTTL).Err(); err != nil {
				log.Printf("[STORE] Failed to cache account list: %v", err)
			}
		}
	}

	return accounts, nil
}

// UpdateBalance atomically replaces balance and resale value together.
// Callers must never update one without the other.
func (s *AccountStore) UpdateBalance(ctx context.Context, uid string, newBalance, newResaleValue int64) error {
	if newBalance < 0 || newBalance%s.cfg.UnitAmount != 0 {
		return ledger.ErrInvalidAmount
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET balance = $1, resale_value = $2, version = version + 1, updated_at = $3
		WHERE uid = $4`,
		newBalance, newResaleValue, time.Now(), uid)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ledger.ErrNotFound
	}

	s.invalidateListCache(ctx)
	return nil
}

// UpdateBalanceTx writes balance and resale value under an open transaction,
// guarded by the optimistic version read at lock time.
func (s *AccountStore) UpdateBalanceTx(tx *sql.Tx, acct *ledger.Account, newBalance, newResaleValue int64) error {
	if newBalance < 0 || newBalance%s.cfg.UnitAmount != 0 {
		return ledger.ErrInvalidAmount
	}

	result, err := tx.Exec(`
		UPDATE accounts SET balance = $1, resale_value = $2, version = version + 1, updated_at = $3
		WHERE uid = $4 AND version = $5`,
		newBalance, newResaleValue, time.Now(), acct.ID, acct.Version)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", acct.ID)
	}
	return nil
}

// LockAccountTx reads an account under FOR UPDATE. Multi-account operations
// must lock in lexicographic uid order to avoid deadlocks.
func (s *AccountStore) LockAccountTx(tx *sql.Tx, uid string) (*ledger.Account, error) {
	row := tx.QueryRow(`
		SELECT uid, name, phone_hash, email_hash, balance, resale_value, certificate_kind, version, created_at, updated_at
		FROM accounts WHERE uid = $1 FOR UPDATE`, uid)
	return scanAccount(row)
}

// UpdateField applies an administrative edit to one allow-listed field.
// Contact fields are re-fingerprinted; the identifier and creation timestamp
// can never be edited through this path.
func (s *AccountStore) UpdateField(ctx context.Context, uid, field, value string) error {
	column, ok := editableFields[field]
	if !ok {
		return ledger.ErrInvalidField
	}

	var stored interface{} = value
	switch field {
	case "phone":
		stored = ledger.Fingerprint(value)
	case "email":
		if value == "" {
			stored = nil
		} else {
			if err := s.validate.Var(value, "email"); err != nil {
				return ledger.ErrInvalidEmail
			}
			stored = ledger.Fingerprint(value)
		}
	case "certificate_kind":
		if value != ledger.CertificateNone && value != ledger.CertificateSmall && value != ledger.CertificateLarge {
			return ledger.ErrInvalidField
		}
	}

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE accounts SET %s = $1, updated_at = $2 WHERE uid = $3`, column),
		stored, time.Now(), uid)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ledger.ErrNotFound
	}

	s.invalidateListCache(ctx)
	return nil
}

// AppendTransaction adds one entry to the account's append-only log.
func (s *AccountStore) AppendTransaction(ctx context.Context, rec ledger.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_transactions (account_uid, reference_id, kind, amount, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.AccountID, rec.ReferenceID, rec.Kind, rec.Amount, rec.Details, time.Now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return ledger.ErrNotFound
		}
		return err
	}
	return nil
}

// AppendTransactionTx appends a log entry under an open transaction so the
// entry lands atomically with its balance write.
func (s *AccountStore) AppendTransactionTx(tx *sql.Tx, rec ledger.Transaction) error {
	_, err := tx.Exec(`
		INSERT INTO account_transactions (account_uid, reference_id, kind, amount, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.AccountID, rec.ReferenceID, rec.Kind, rec.Amount, rec.Details, time.Now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return ledger.ErrNotFound
		}
		return err
	}
	return nil
}

// Transactions returns the account's log in append order.
func (s *AccountStore) Transactions(ctx context.Context, uid string) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_uid, reference_id, kind, amount, details, created_at
		FROM account_transactions WHERE account_uid = $1 ORDER BY id`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]ledger.Transaction, 0)
	for rows.Next() {
		var rec ledger.Transaction
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.ReferenceID, &rec.Kind, &rec.Amount, &rec.Details, &rec.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, rec)
	}
	return txns, rows.Err()
}

// CountCertificateDownloads reports how many download entries already exist
// for the given certificate file on this account.
func (s *AccountStore) CountCertificateDownloads(ctx context.Context, uid, fileName string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM account_transactions
		WHERE account_uid = $1 AND kind = $2 AND details LIKE $3`,
		uid, ledger.TxCertificateDownload, fileName+"%").Scan(&count)
	return count, err
}

// AppendNote adds one administrative note to the account.
func (s *AccountStore) AppendNote(ctx context.Context, uid, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_notes (account_uid, note, created_at)
		VALUES ($1, $2, $3)`, uid, text, time.Now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return ledger.ErrNotFound
		}
		return err
	}
	s.invalidateListCache(ctx)
	return nil
}

// Notes returns the account's administrative notes in append order.
func (s *AccountStore) Notes(ctx context.Context, uid string) ([]ledger.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_uid, note, created_at
		FROM account_notes WHERE account_uid = $1 ORDER BY id`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]ledger.Note, 0)
	for rows.Next() {
		var n ledger.Note
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// Delete removes the account and cascades its logs away. Idempotent: absent
// uids are not an error. The issued identifier is kept so it is never reused.
func (s *AccountStore) Delete(ctx context.Context, uid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE uid = $1`, uid); err != nil {
		return err
	}
	s.invalidateListCache(ctx)
	return nil
}

// IdentifierExists reports whether uid was ever issued, to a live or a
// since-deleted account. The allocator's authoritative check.
func (s *AccountStore) IdentifierExists(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM issued_identifiers WHERE uid = $1)`, uid).Scan(&exists)
	return exists, err
}

// BeginTx opens a storage transaction for multi-step ledger operations.
func (s *AccountStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// InvalidateListCache drops the cached account listing. Exposed so the
// ledger service can invalidate after committing its own transactions.
func (s *AccountStore) InvalidateListCache(ctx context.Context) {
	s.invalidateListCache(ctx)
}

func (s *AccountStore) invalidateListCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, listCacheKey).Err(); err != nil {
		log.Printf("[STORE] Failed to invalidate account list cache: %v", err)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var acct ledger.Account
	var emailHash sql.NullString
	err := row.Scan(&acct.ID, &acct.Name, &acct.PhoneFingerprint, &emailHash, &acct.Balance,
		&acct.ResaleValue, &acct.CertificateKind, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acct.EmailFingerprint = emailHash.String
	return &acct, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
