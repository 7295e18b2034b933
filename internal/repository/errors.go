// Package repository defines the SQL data access for the marketplace and the
// error values reused across repositories.  Handlers and services use these
// sentinels to tell failure scenarios apart without inspecting driver
// errors themselves.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a guarded update matched no row because the
// record is no longer in the expected state.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// IsDuplicate reports whether err is a MySQL unique-constraint violation.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	if IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}
