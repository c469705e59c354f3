package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/sharefund/backend/internal/ledger"
)

var testCfg = ledger.Config{UnitAmount: 500, ResaleRatePerShare: 480}

func accountColumns() []string {
	return []string{"uid", "name", "phone_hash", "email_hash", "balance", "resale_value", "certificate_kind", "version", "created_at", "updated_at"}
}

func TestAccountStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db, nil, testCfg)

	t.Run("successful create", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("aB3x_9", "Asha", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1500), int64(1440), "small", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO issued_identifiers").
			WithArgs("aB3x_9", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		acct, err := store.Create(context.Background(), CreateParams{
			UID:             "aB3x_9",
			Name:            "Asha",
			Phone:           "9998887770",
			Balance:         1500,
			ResaleValue:     1440,
			CertificateKind: ledger.CertificateSmall,
		})
		assert.NoError(t, err)
		assert.Equal(t, "aB3x_9", acct.ID)
		assert.Equal(t, ledger.Fingerprint("9998887770"), acct.PhoneFingerprint)
		assert.Empty(t, acct.EmailFingerprint)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate identifier", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := store.Create(context.Background(), CreateParams{
			UID: "aB3x_9", Name: "Asha", Phone: "9998887770", Balance: 500, ResaleValue: 480,
		})
		assert.ErrorIs(t, err, ledger.ErrDuplicateIdentifier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("balance not a multiple of the unit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := store.Create(context.Background(), CreateParams{
			UID: "cDe4f_", Name: "Asha", Phone: "9998887770", Balance: 750,
		})
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed email", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := store.Create(context.Background(), CreateParams{
			UID: "cDe4f_", Name: "Asha", Phone: "9998887770", Email: "not-an-email", Balance: 500,
		})
		assert.ErrorIs(t, err, ledger.ErrInvalidEmail)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db, nil, testCfg)

	t.Run("existing account", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT uid, name, phone_hash, email_hash, balance, resale_value, certificate_kind, version, created_at, updated_at FROM accounts WHERE uid = \\$1").
			WithArgs("aB3x_9").
			WillReturnRows(sqlmock.NewRows(accountColumns()).
				AddRow("aB3x_9", "Asha", "ph", nil, 1500, 1440, "small", 1, now, now))

		acct, err := store.Get(context.Background(), "aB3x_9")
		assert.NoError(t, err)
		assert.Equal(t, int64(1500), acct.Balance)
		assert.Equal(t, int64(1440), acct.ResaleValue)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT uid, name, phone_hash, email_hash").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(accountColumns()))

		_, err := store.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestAccountStore_List_Cache(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	store := NewAccountStore(db, redisClient, testCfg)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	accounts := []ledger.Account{{
		ID: "aB3x_9", Name: "Asha", PhoneFingerprint: "ph",
		Balance: 1500, ResaleValue: 1440, CertificateKind: "small",
		Version: 1, CreatedAt: now, UpdatedAt: now,
	}}
	cached, err := json.Marshal(accounts)
	assert.NoError(t, err)

	t.Run("cache miss populates cache", func(t *testing.T) {
		redisMock.ExpectGet(listCacheKey).RedisNil()
		mock.ExpectQuery("SELECT uid, name, phone_hash, email_hash, balance, resale_value, certificate_kind, version, created_at, updated_at FROM accounts ORDER BY created_at").
			WillReturnRows(sqlmock.NewRows(accountColumns()).
				AddRow("aB3x_9", "Asha", "ph", nil, 1500, 1440, "small", 1, now, now))
		redisMock.ExpectSet(listCacheKey, cached, listCacheTTL).SetVal("OK")

		got, err := store.List(context.Background())
		assert.NoError(t, err)
		assert.Len(t, got, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache hit skips database", func(t *testing.T) {
		redisMock.ExpectGet(listCacheKey).SetVal(string(cached))

		got, err := store.List(context.Background())
		assert.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, "aB3x_9", got[0].ID)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("mutation invalidates cache", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET balance = \\$1, resale_value = \\$2, version = version \\+ 1, updated_at = \\$3 WHERE uid = \\$4").
			WithArgs(int64(2000), int64(1920), sqlmock.AnyArg(), "aB3x_9").
			WillReturnResult(sqlmock.NewResult(1, 1))
		redisMock.ExpectDel(listCacheKey).SetVal(1)

		err := store.UpdateBalance(context.Background(), "aB3x_9", 2000, 1920)
		assert.NoError(t, err)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestAccountStore_UpdateBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db, nil, testCfg)

	t.Run("rejects non-multiple balance", func(t *testing.T) {
		err := store.UpdateBalance(context.Background(), "aB3x_9", 1234, 960)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	})

	t.Run("rejects negative balance", func(t *testing.T) {
		err := store.UpdateBalance(context.Background(), "aB3x_9", -500, 0)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(int64(1000), int64(960), sqlmock.AnyArg(), "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateBalance(context.Background(), "missing", 1000, 960)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestAccountStore_UpdateField(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db, nil, testCfg)

	t.Run("allow-listed field", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET name = \\$1, updated_at = \\$2 WHERE uid = \\$3").
			WithArgs("Asha K", sqlmock.AnyArg(), "aB3x_9").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := store.UpdateField(context.Background(), "aB3x_9", "name", "Asha K")
		assert.NoError(t, err)
	})

	t.Run("phone is fingerprinted", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET phone_hash = \\$1, updated_at = \\$2 WHERE uid = \\$3").
			WithArgs(ledger.Fingerprint("8887776660"), sqlmock.AnyArg(), "aB3x_9").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := store.UpdateField(context.Background(), "aB3x_9", "phone", "8887776660")
		assert.NoError(t, err)
	})

	t.Run("identifier is not editable", func(t *testing.T) {
		err := store.UpdateField(context.Background(), "aB3x_9", "uid", "newid")
		assert.ErrorIs(t, err, ledger.ErrInvalidField)
	})

	t.Run("creation timestamp is not editable", func(t *testing.T) {
		err := store.UpdateField(context.Background(), "aB3x_9", "created_at", "2020-01-01")
		assert.ErrorIs(t, err, ledger.ErrInvalidField)
	})

	t.Run("malformed email", func(t *testing.T) {
		err := store.UpdateField(context.Background(), "aB3x_9", "email", "bad@@mail")
		assert.ErrorIs(t, err, ledger.ErrInvalidEmail)
	})

	t.Run("unknown certificate kind", func(t *testing.T) {
		err := store.UpdateField(context.Background(), "aB3x_9", "certificate_kind", "golden")
		assert.ErrorIs(t, err, ledger.ErrInvalidField)
	})
}

func TestAccountStore_AppendTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db, nil, testCfg)

	t.Run("append to existing account", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO account_transactions").
			WithArgs("aB3x_9", "ref-1", ledger.TxInvestment, int64(1500), "Initial investment", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := store.AppendTransaction(context.Background(), ledger.Transaction{
			AccountID: "aB3x_9", ReferenceID: "ref-1", Kind: ledger.TxInvestment,
			Amount: 1500, Details: "Initial investment",
		})
		assert.NoError(t, err)
	})

	t.Run("append to deleted account", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO account_transactions").
			WillReturnError(&pq.Error{Code: "23503"})

		err := store.AppendTransaction(context.Background(), ledger.Transaction{AccountID: "gone"})
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestAccountStore_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db, nil, testCfg)

	t.Run("idempotent on absent uid", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM accounts WHERE uid = \\$1").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Delete(context.Background(), "missing")
		assert.NoError(t, err)
	})
}

func TestAccountStore_IdentifierExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db, nil, testCfg)

	t.Run("issued identifier survives account deletion", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM issued_identifiers WHERE uid = \\$1\\)").
			WithArgs("aB3x_9").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := store.IdentifierExists(context.Background(), "aB3x_9")
		assert.NoError(t, err)
		assert.True(t, exists)
	})
}
