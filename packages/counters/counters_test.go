package counters

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/brivas/sms-validation-bridge/packages/model"
	"github.com/brivas/sms-validation-bridge/packages/store"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return New(store.New(db)), mock, func() { db.Close() }
}

func TestIncrement(t *testing.T) {
	s, mock, closeFn := newTestStore(t)
	defer closeFn()

	mock.ExpectQuery(`INSERT INTO count_sms`).
		WithArgs("+911234567890", "91", "1234567890").
		WillReturnRows(sqlmock.NewRows([]string{"message_count"}).AddRow(3))

	got, err := s.Increment(context.Background(), "+911234567890", "91", "1234567890")
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if got != 3 {
		t.Errorf("Increment = %d, want 3", got)
	}
}

func TestBlacklist(t *testing.T) {
	s, mock, closeFn := newTestStore(t)
	defer closeFn()

	mock.ExpectExec(`INSERT INTO blacklist_sms`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := model.BlacklistRecord{SenderNumber: "+911234567890", CountryCode: "91", LocalMobile: "1234567890"}
	if err := s.Blacklist(context.Background(), rec); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
}

func TestIsBlacklisted(t *testing.T) {
	s, mock, closeFn := newTestStore(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("+911234567890").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	got, err := s.IsBlacklisted(context.Background(), "+911234567890")
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if !got {
		t.Error("IsBlacklisted = false, want true")
	}
}
