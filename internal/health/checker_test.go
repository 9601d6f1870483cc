package health

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

func TestChecker(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	checker := NewChecker(nil)
	checker.AddCheck("postgres", NewDBChecker(db))
	checker.AddCheck("redis", NewRedisChecker(client))
	checker.AddCheck("telegram", NewTelegramChecker(&telebot.Bot{Me: &telebot.User{ID: 1}}))
	checker.AddCheck("ignored", nil)

	results := checker.Check(context.Background())
	assert.Equal(t, map[string]string{"postgres": StatusOK, "redis": StatusOK, "telegram": StatusOK}, results)
	assert.True(t, Healthy(results))
	assert.Equal(t, []string{"postgres", "redis", "telegram"}, checker.Names())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChecker_Failures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	checker := NewChecker(nil)
	checker.AddCheck("redis", NewRedisChecker(client))
	checker.AddCheck("telegram", NewTelegramChecker(nil))
	checker.AddCheck("custom", CheckFunc(func(context.Context) error { return errors.New("down") }))

	results := checker.Check(context.Background())
	assert.False(t, Healthy(results))
	assert.NotEqual(t, StatusOK, results["redis"])
	assert.NotEqual(t, StatusOK, results["telegram"])
	assert.Equal(t, "down", results["custom"])
}
