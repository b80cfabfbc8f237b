package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert hits a unique key.
var ErrDuplicate = errors.New("duplicate key")

const (
	pqUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	defaultPageSize      = 20
	maxPageSize          = 100
	postgresDriverPrefix = "postgres"
)

// isUniqueViolation recognises duplicate-key failures from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

type queryer interface {
	sqlx.ExtContext
	DriverName() string
}

// insertReturningID runs an INSERT and yields the generated id. Postgres has
// no LastInsertId so the statement is extended with RETURNING.
func insertReturningID(ctx context.Context, q queryer, query string, args ...interface{}) (int64, error) {
	if q.DriverName() == postgresDriverPrefix {
		var id int64
		if err := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// pageBounds normalises paging input into LIMIT and OFFSET values.
func pageBounds(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, (page - 1) * size
}
