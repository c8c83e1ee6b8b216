package database

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natn4y/comment-system-backend/config"
	"github.com/natn4y/comment-system-backend/internal/model"
)

func TestNew_SQLite(t *testing.T) {
	db, err := New(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&model.Comment{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Close())
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(&config.DatabaseConfig{
		Host:     "db",
		Port:     3306,
		Username: "root",
		Password: "secret",
		Database: "comments",
	})
	assert.Equal(t, "root:secret@tcp(db:3306)/comments?charset=utf8mb4&parseTime=True&loc=Local", dsn)

	assert.Equal(t, "custom", mysqlDSN(&config.DatabaseConfig{DSN: "custom"}))
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(&config.DatabaseConfig{
		Host:     "pg",
		Port:     5432,
		Username: "postgres",
		Password: "pw",
		Database: "comments",
	})
	assert.Equal(t, "host=pg user=postgres password=pw dbname=comments port=5432 sslmode=disable TimeZone=UTC", dsn)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(&config.RedisConfig{
		Host: mr.Host(),
		Port: mustPort(t, mr.Port()),
	})
	require.NoError(t, err)
	defer client.Close()
}

func TestNewRedis_Unreachable(t *testing.T) {
	_, err := NewRedis(&config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func mustPort(t *testing.T, port string) int {
	t.Helper()
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return p
}
