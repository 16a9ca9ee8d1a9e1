package onboarding

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/brivas/sms-validation-bridge/packages/store"
)

func newTestRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return New(store.New(db)), mock, func() { db.Close() }
}

func TestHashForIsDeterministic(t *testing.T) {
	a := hashFor("919876543210", "deadbeef")
	b := hashFor("919876543210", "deadbeef")
	if a != b {
		t.Errorf("hashFor is not deterministic: %q != %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("hashFor len = %d, want 64 (sha256 hex)", len(a))
	}
}

func TestHashForVariesWithSalt(t *testing.T) {
	a := hashFor("919876543210", "deadbeef")
	b := hashFor("919876543210", "beefdead")
	if a == b {
		t.Error("hashFor should differ with a different salt")
	}
}

func TestSaltBytesRejectsOddLength(t *testing.T) {
	if _, err := saltBytes(7); err == nil {
		t.Error("saltBytes(7) should fail: salt length must be even")
	}
}

func TestSaltBytesLength(t *testing.T) {
	b, err := saltBytes(16)
	if err != nil {
		t.Fatalf("saltBytes: %v", err)
	}
	if len(b) != 8 {
		t.Errorf("saltBytes(16) produced %d bytes, want 8", len(b))
	}
}

func TestRegisterRejectsAlreadyActive(t *testing.T) {
	r, mock, closeFn := newTestRegistry(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT is_active FROM onboarding_mobile WHERE mobile_number = \$1`).
		WithArgs("919876543210").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))

	_, err := r.Register(context.Background(), "919876543210", 16)
	if err != ErrAlreadyActive {
		t.Errorf("Register err = %v, want ErrAlreadyActive", err)
	}
}

func TestStatusNotFound(t *testing.T) {
	r, mock, closeFn := newTestRegistry(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT salt, hash, request_timestamp, is_active FROM onboarding_mobile WHERE mobile_number = \$1`).
		WithArgs("919876543210").
		WillReturnRows(sqlmock.NewRows([]string{"salt", "hash", "request_timestamp", "is_active"}))

	_, err := r.Status(context.Background(), "919876543210")
	if err != ErrNotFound {
		t.Errorf("Status err = %v, want ErrNotFound", err)
	}
}

func TestStatusFound(t *testing.T) {
	r, mock, closeFn := newTestRegistry(t)
	defer closeFn()

	ts := time.Now().UTC()
	mock.ExpectQuery(`SELECT salt, hash, request_timestamp, is_active FROM onboarding_mobile WHERE mobile_number = \$1`).
		WithArgs("919876543210").
		WillReturnRows(sqlmock.NewRows([]string{"salt", "hash", "request_timestamp", "is_active"}).
			AddRow("deadbeef", hashFor("919876543210", "deadbeef"), ts, true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("valid", "919876543210").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	rec, err := r.Status(context.Background(), "919876543210")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if rec.Salt != "deadbeef" || !rec.IsActive {
		t.Errorf("Status = %+v, unexpected", rec)
	}
	if !rec.SMSValidated {
		t.Error("Status.SMSValidated = false, want true")
	}
}

func TestDeactivateNotFound(t *testing.T) {
	r, mock, closeFn := newTestRegistry(t)
	defer closeFn()

	mock.ExpectExec(`UPDATE onboarding_mobile SET is_active = false WHERE mobile_number = \$1`).
		WithArgs("919876543210").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := r.Deactivate(context.Background(), "919876543210"); err != ErrNotFound {
		t.Errorf("Deactivate err = %v, want ErrNotFound", err)
	}
}
