package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-registration/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

func sampleRegistration() *model.Registration {
	return &model.Registration{
		ID:            "0b8f7e2c-7c59-4a4e-9d38-0e3a4f1c2b11",
		EventName:     "Tech Quiz",
		EntryFee:      decimal.RequireFromString("50.00"),
		FullName:      "Asha Rao",
		Email:         "asha@example.com",
		Phone:         "9876543210",
		College:       "NIT",
		Year:          "3",
		Branch:        "CSE",
		PaymentStatus: model.PaymentPending,
		CreatedAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRegistrationRepo_Create(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		wantErr error
	}{
		{name: "Inserted"},
		{name: "Duplicate", execErr: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, wantErr: ErrDuplicateRegistration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, done := newMock(t)
			defer done()
			repo := NewRegistrationRepo(db)
			reg := sampleRegistration()

			exp := mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
				WithArgs(reg.ID, reg.EventName, reg.EntryFee, reg.FullName, reg.Email, reg.Phone, reg.College,
					reg.Year, reg.Branch, nil, nil, nil, "PENDING", reg.CreatedAt)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.Create(context.Background(), reg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistrationRepo_GetByID(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewRegistrationRepo(db)
	reg := sampleRegistration()

	cols := []string{"id", "event_name", "entry_fee", "full_name", "email", "phone", "college", "year", "branch",
		"transaction_id", "user_agent", "ip", "payment_status", "created_at"}
	mock.ExpectQuery("SELECT .* FROM registrations WHERE id = \\?").
		WithArgs(reg.ID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(reg.ID, reg.EventName, "50.00", reg.FullName, reg.Email,
			reg.Phone, reg.College, reg.Year, reg.Branch, nil, "curl/8", "10.0.0.1", "PAID", reg.CreatedAt))
	mock.ExpectQuery("SELECT .* FROM registrations WHERE id = \\?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))

	got, err := repo.GetByID(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)
	assert.True(t, got.EntryFee.Equal(decimal.NewFromInt(50)))
	assert.Nil(t, got.TransactionID)
	require.NotNil(t, got.IP)
	assert.Equal(t, "10.0.0.1", *got.IP)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestRegistrationRepo_UpdatePaymentStatus(t *testing.T) {
	q := regexp.QuoteMeta("UPDATE registrations SET payment_status = ? WHERE id = ? AND payment_status <> ?")
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "Updated", affected: 1, want: true},
		{name: "AlreadyPaid", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, done := newMock(t)
			defer done()

			mock.ExpectExec(q).
				WithArgs("FAILED", "reg-1", "PAID").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := NewRegistrationRepo(db).UpdatePaymentStatus(context.Background(), "reg-1", model.PaymentFailed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
