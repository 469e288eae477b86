// Package repository holds the MySQL-backed stores.  Sentinel errors let the
// service layer tell missing rows and uniqueness violations apart from
// infrastructure failures, which are wrapped with context via pkg/errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrEventNotFound         = errors.New("event not found or inactive")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrDuplicateRegistration = errors.New("registration already exists for this event and email")
	ErrDuplicateOrder        = errors.New("payment for gateway order already exists")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
