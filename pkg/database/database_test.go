package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-book-exchange/pkg/config"
)

func TestDataSource(t *testing.T) {
	driver, dsn, err := dataSource(config.DatabaseConfig{
		Driver: config.DriverPostgres, Host: "db", Port: 5432, User: "u", Password: "p", Name: "books", SSLMode: "disable",
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=books sslmode=disable", dsn)

	driver, dsn, err = dataSource(config.DatabaseConfig{
		Driver: config.DriverMySQL, Host: "db", Port: 3306, User: "root", Name: "books",
	})
	require.NoError(t, err)
	assert.Equal(t, "mysql", driver)
	assert.Equal(t, "root@tcp(db:3306)/books?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true", dsn)

	_, _, err = dataSource(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}
