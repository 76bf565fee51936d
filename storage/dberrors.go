package storage

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/typely/certify/storage/model"
)

// PostgreSQL SQLSTATE codes
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// MySQL server error numbers
const (
	myDupEntry              = 1062
	myBadField              = 1054
	myNoSuchTable           = 1146
	myCheckConstraintFailed = 3819
)

// classifyError maps a driver error onto the driver independent
// model.DBError taxonomy. nil stays nil.
func classifyError(err error) *model.DBError {
	if err == nil {
		return nil
	}
	var dbErr *model.DBError
	if errors.As(err, &dbErr) {
		return dbErr
	}
	out := &model.DBError{
		Kind: model.DBErrorUnknown,
		Err:  err,
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		out.Constraint = pgErr.ConstraintName
		switch pgErr.Code {
		case pgUniqueViolation:
			out.Kind = model.DBErrorUniqueViolation
		case pgCheckViolation:
			out.Kind = model.DBErrorCheckViolation
		case pgUndefinedTable:
			out.Kind = model.DBErrorMissingRelation
		case pgUndefinedColumn:
			out.Kind = model.DBErrorMissingColumn
		}
		if out.Constraint == "" {
			out.Constraint = pgErr.Message
		}
		return out
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		out.Constraint = myErr.Message
		switch myErr.Number {
		case myDupEntry:
			out.Kind = model.DBErrorUniqueViolation
		case myCheckConstraintFailed:
			out.Kind = model.DBErrorCheckViolation
		case myNoSuchTable:
			out.Kind = model.DBErrorMissingRelation
		case myBadField:
			out.Kind = model.DBErrorMissingColumn
		}
		return out
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		msg := liteErr.Error()
		out.Constraint = msg
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			out.Kind = model.DBErrorUniqueViolation
			return out
		case sqlite3.ErrConstraintCheck:
			out.Kind = model.DBErrorCheckViolation
			return out
		}
		out.Kind = kindFromMessage(msg)
		return out
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		out.Kind = model.DBErrorUniqueViolation
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		out.Kind = model.DBErrorCheckViolation
		out.Constraint = err.Error()
	default:
		out.Kind = kindFromMessage(err.Error())
	}
	return out
}

// kindFromMessage is the fallback for drivers that only report messages
func kindFromMessage(msg string) model.DBErrorKind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "no such table"):
		return model.DBErrorMissingRelation
	case strings.Contains(msg, "no such column"), strings.Contains(msg, "has no column named"):
		return model.DBErrorMissingColumn
	default:
		return model.DBErrorUnknown
	}
}
