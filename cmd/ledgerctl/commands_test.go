package main

import (
	"bytes"
	"testing"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeglobal/lee_ledger/internal/config"
	"github.com/leeglobal/lee_ledger/internal/logging"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd(config.Config{}, logging.Discard())
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	return root.Execute()
}

func TestMigrateArgumentValidation(t *testing.T) {
	require.ErrorContains(t, run(t, "migrate", "down", "0"), "invalid count")
	require.ErrorContains(t, run(t, "migrate", "down", "x"), "invalid count")
	require.ErrorContains(t, run(t, "migrate", "up", "many"), "invalid [count]")
	require.Error(t, run(t, "migrate", "down"))
}

func TestCommandsRequireDatabaseURL(t *testing.T) {
	require.ErrorContains(t, run(t, "migrate", "up"), "database url is required")
	require.ErrorContains(t, run(t, "balances"), "database url is required")
	require.ErrorContains(t, run(t, "seed-issuer", "--minimum", "10"), "database url is required")
}

func TestSeedIssuerRejectsBadMinimum(t *testing.T) {
	require.ErrorContains(t, run(t, "seed-issuer", "--minimum", "lots"), "invalid --minimum")
}

func TestDirectionName(t *testing.T) {
	assert.Equal(t, "up", directionName(migrate.Up))
	assert.Equal(t, "down", directionName(migrate.Down))
}
