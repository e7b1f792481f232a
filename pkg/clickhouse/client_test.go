package clickhouse

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{Port: 9000, Database: "tokenrank", User: "default"}
	for _, opt := range []ClientOption{
		WithHost("ch.internal"),
		WithCredentials("ranker", "s3cret"),
		WithTimeouts(2*time.Second, 0),
		WithAsyncInsert(true, true),
		WithMaxExecutionTime(45 * time.Second),
	} {
		opt(&cfg)
	}

	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.internal:9000", u.Host)
	assert.Equal(t, "/tokenrank", u.Path)
	assert.Equal(t, "ranker", u.User.Username())
	q := u.Query()
	assert.Equal(t, "2s", q.Get("dial_timeout"))
	assert.Equal(t, "", q.Get("read_timeout"))
	assert.Equal(t, "45", q.Get("max_execution_time"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Equal(t, "1", q.Get("wait_for_async_insert"))

	WithHTTP(true)(&cfg)
	u, err = url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
}

func TestWithPoolKeepsDefaults(t *testing.T) {
	cfg := ClientConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Minute}
	WithPool(0, 8, 0)(&cfg)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 8, cfg.MaxIdleConns)
	assert.Equal(t, time.Minute, cfg.ConnMaxLifetime)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}

func TestInitSchemaStopsAtFirstFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b").WillReturnError(errors.New("syntax"))

	c := NewFromDB(db)
	err = c.InitSchema(context.Background(), []string{"CREATE TABLE a", "CREATE TABLE b", "CREATE TABLE c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
