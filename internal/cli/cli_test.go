package cli

import (
	"bytes"
	stdsql "database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const mapping = `
types:
  - name: Account
    fields:
      - {name: id, type: int64}
      - {name: owner, type: string}
      - {name: balance, type: float64}
    tables:
      - key: [id]
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCaps(t *testing.T) {
	out, err := run(t, "caps", "--dialect", "sqlserver2008")
	require.NoError(t, err)
	assert.Contains(t, out, "paging")
	assert.Contains(t, out, "row_number")

	out, err = run(t, "caps", "--dialect", "mysql", "--format", "yaml")
	require.NoError(t, err)
	var v capsView
	require.NoError(t, yaml.Unmarshal([]byte(out), &v))
	assert.Equal(t, "mysql", v.Dialect)
	assert.Equal(t, "18446744073709551615", v.MaxLimit)
	assert.True(t, v.LimitRequiredForOffset)
	assert.True(t, v.BackslashEscapes)

	t.Run("Config", func(t *testing.T) {
		path := writeFile(t, "caps.yaml", "dialect: sqlserver\noverrides:\n  paging: row_number\n")
		out, err := run(t, "caps", "--config", path, "--format", "yaml")
		require.NoError(t, err)
		var v capsView
		require.NoError(t, yaml.Unmarshal([]byte(out), &v))
		assert.Equal(t, "sqlserver", v.Dialect)
		assert.Equal(t, "row_number", v.Paging)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := run(t, "caps", "--dialect", "db2")
		assert.Error(t, err)
		_, err = run(t, "caps", "--format", "json")
		assert.ErrorContains(t, err, "invalid format")
		_, err = run(t, "caps", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestExplain(t *testing.T) {
	path := writeFile(t, "mapping.yaml", mapping)

	out, err := run(t, "explain", path)
	require.NoError(t, err)
	assert.Equal(t, `-- Account insert
INSERT INTO "accounts" ("id", "owner", "balance") VALUES ($1, $2, $3)

-- Account update
UPDATE "accounts" SET "owner" = $1, "balance" = $2 WHERE "id" = $3

-- Account remove
DELETE FROM "accounts" WHERE "id" = $1
`, out)

	out, err = run(t, "explain", path, "--dialect", "mysql", "--op", "update", "--fields", "balance")
	require.NoError(t, err)
	assert.Equal(t, "-- Account update\nUPDATE `accounts` SET `balance` = ? WHERE `id` = ?\n", out)

	out, err = run(t, "explain", path, "--op", "update", "--fields", "id")
	require.NoError(t, err)
	assert.Equal(t, "-- Account update\n-- nothing to execute\n", out)

	out, err = run(t, "explain", path, "--dialect", "sqlite", "--op", "insert", "--keygen", "account_keys", "--format", "yaml")
	require.NoError(t, err)
	var got []explained
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "insert", got[0].Op)
	assert.Equal(t, []string{`INSERT INTO "accounts" ("id", "owner", "balance") VALUES (?, ?, ?)`}, got[0].Statements)
	assert.Equal(t, explained{
		Type:       "account_keys",
		Op:         "keygen",
		Statements: []string{`INSERT INTO "account_keys" DEFAULT VALUES`, `SELECT last_insert_rowid()`},
	}, got[1])

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			want string
		}{
			{"UnknownOp", []string{"explain", path, "--op", "upsert"}, "unknown operation"},
			{"UnknownField", []string{"explain", path, "--op", "update", "--fields", "email"}, `no field "email"`},
			{"MissingFile", []string{"explain", filepath.Join(t.TempDir(), "none.yaml")}, "none.yaml"},
			{"NoArgs", []string{"explain"}, "accepts 1 arg"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := run(t, tt.args...)
				assert.ErrorContains(t, err, tt.want)
			})
		}
	})
}

func TestNextKey(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "keys.db")
	db, err := stdsql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE account_keys (id INTEGER PRIMARY KEY AUTOINCREMENT)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := run(t, "nextkey", "account_keys", "--dialect", "sqlite", "--dsn", dsn, "-n", "3")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)

	out, err = run(t, "nextkey", "account_keys", "--dialect", "sqlite", "--dsn", dsn, "--format", "yaml")
	require.NoError(t, err)
	var keys []int64
	require.NoError(t, yaml.Unmarshal([]byte(out), &keys))
	assert.Equal(t, []int64{4}, keys)

	t.Run("Verbose", func(t *testing.T) {
		cmd := NewRootCommand()
		var out, log bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&log)
		cmd.SetArgs([]string{"nextkey", "account_keys", "--dialect", "sqlite", "--dsn", dsn, "-n", "2", "-v"})
		require.NoError(t, cmd.Execute())
		assert.Equal(t, "5\n6\n", out.String())
		assert.Contains(t, log.String(), "msg=\"tx exec\" kind=insert")
		assert.Contains(t, log.String(), "msg=\"keys allocated\"")
		assert.Contains(t, log.String(), "select=2 insert=2 update=0 delete=0")
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			want string
		}{
			{"MissingDSN", []string{"nextkey", "account_keys"}, `"dsn" not set`},
			{"Count", []string{"nextkey", "account_keys", "--dsn", dsn, "-n", "0"}, "invalid count"},
			{"MissingTable", []string{"nextkey", "other_keys", "--dialect", "sqlite", "--dsn", dsn}, "other_keys"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := run(t, tt.args...)
				assert.ErrorContains(t, err, tt.want)
			})
		}
	})
}
