package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User: "vexpense",
		Name: "vexpense",
	})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=vexpense dbname=vexpense sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "importer",
		Name:     "expenses",
		Host:     "db.colombo.internal",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":  "require",
			"TimeZone": "UTC",
		},
	})
	require.NoError(t, err)

	for _, part := range []string{
		"host=db.colombo.internal",
		"port=6543",
		"user=importer",
		"dbname=expenses",
		"password=pass",
		"sslmode=require",
		"TimeZone=UTC",
	} {
		require.Contains(t, dsn, part)
	}
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User: "vexpense",
		Name: "vexpense",
	})
	require.NoError(t, err)
	require.Equal(t, "vexpense@tcp(127.0.0.1:3306)/vexpense?charset=utf8mb4&loc=UTC&parseTime=True", dsn)
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "exporter",
		Password: "secret",
		Name:     "db",
		Host:     "db.yokohama.internal",
		Port:     3307,
		Options: map[string]string{
			"tls": "skip-verify",
		},
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "exporter:secret@tcp(db.yokohama.internal:3307)/db?")
	require.Contains(t, dsn, "tls=skip-verify")
	require.Contains(t, dsn, "parseTime=True")
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}
