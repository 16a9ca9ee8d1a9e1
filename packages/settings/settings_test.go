package settings

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

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

func TestGet(t *testing.T) {
	s, mock, closeFn := newTestStore(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT setting_value FROM system_settings WHERE setting_key = \$1`).
		WithArgs("blacklist_threshold").
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}).AddRow("5"))

	v, err := s.Get(context.Background(), "blacklist_threshold")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "5" {
		t.Errorf("Get = %q, want 5", v)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s, mock, closeFn := newTestStore(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT setting_value FROM system_settings WHERE setting_key = \$1`).
		WithArgs("missing_key").
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}))

	_, err := s.Get(context.Background(), "missing_key")
	if err != ErrNotFound {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
}

func TestGetStringFallsBackToDefault(t *testing.T) {
	s, mock, closeFn := newTestStore(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT setting_value FROM system_settings WHERE setting_key = \$1`).
		WithArgs("default_country_code").
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}))

	v, err := s.GetString(context.Background(), "default_country_code", "91")
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if v != "91" {
		t.Errorf("GetString = %q, want 91", v)
	}
}

func TestGetBool(t *testing.T) {
	s, mock, closeFn := newTestStore(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT setting_value FROM system_settings WHERE setting_key = \$1`).
		WithArgs("foreign_number_validation").
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}).AddRow("true"))

	got, err := s.GetBool(context.Background(), "foreign_number_validation", false)
	if err != nil {
		t.Fatalf("GetBool: %v", err)
	}
	if !got {
		t.Error("GetBool = false, want true")
	}
}

func TestGetStringSliceFallsBackOnParseFailure(t *testing.T) {
	s, mock, closeFn := newTestStore(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT setting_value FROM system_settings WHERE setting_key = \$1`).
		WithArgs("allowed_country_codes").
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}).AddRow("not-json"))

	got, err := s.GetStringSlice(context.Background(), "allowed_country_codes", []string{"91"})
	if err != nil {
		t.Fatalf("GetStringSlice: %v", err)
	}
	if len(got) != 1 || got[0] != "91" {
		t.Errorf("GetStringSlice = %v, want [91]", got)
	}
}

func TestSet(t *testing.T) {
	s, mock, closeFn := newTestStore(t)
	defer closeFn()

	mock.ExpectExec(`INSERT INTO system_settings`).
		WithArgs("blacklist_threshold", "10").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Set(context.Background(), "blacklist_threshold", "10"); err != nil {
		t.Fatalf("Set: %v", err)
	}
}
