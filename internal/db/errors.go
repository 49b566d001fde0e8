package db

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	// ErrUsersExist is returned by CreateFirstUser once any user is stored.
	ErrUsersExist = errors.New("users already exist")
)

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}
