package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads. Empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range Keys {
		t.Setenv(EnvPrefix+"_"+strings.ToUpper(key), "")
	}
	t.Setenv("DATABASE_URL", "")
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// newFlags mirrors the root command's persistent flags.
func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("dialect", "mysql", "")
	fs.String("driver", "", "")
	fs.String("dsn", "", "")
	fs.String("format", "text", "")
	fs.BoolP("verbose", "v", false, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{Dir: t.TempDir(), Home: "-"})
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Dialect)
	assert.Equal(t, "mysql", cfg.Driver)
	assert.Empty(t, cfg.DSN)
	assert.Equal(t, "text", cfg.Format)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.File)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "sqlcompile.yaml", "dialect: sqlite\ndsn: app.db\nformat: json\nverbose: true\n")

	cfg, err := Load(Options{Dir: dir, Home: "-"})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "app.db", cfg.DSN)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, filepath.Join(dir, "sqlcompile.yaml"), cfg.File)
}

func TestLoad_HomeConfig(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	cfgDir := filepath.Join(home, ".config", "sqlcompile")
	require.NoError(t, os.MkdirAll(cfgDir, 0755))
	writeFile(t, cfgDir, "sqlcompile.yaml", "dialect: sqlite\n")

	cfg, err := Load(Options{Dir: t.TempDir(), Home: home})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect)
}

func TestLoad_Filesystem(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()
	dir := filepath.FromSlash("/work")
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "sqlcompile.yaml"), []byte("dialect: sqlite\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, ".env"), []byte("SQLCOMPILE_DSN=mem.db\n"), 0644))

	cfg, err := Load(Options{Dir: dir, Home: "-", Fs: fs})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "mem.db", cfg.DSN)
	assert.Equal(t, filepath.Join(dir, "sqlcompile.yaml"), cfg.File)

	// Nothing on the OS filesystem is consulted.
	cfg, err = Load(Options{Dir: dir, Home: "-", Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Dialect)
	assert.Empty(t, cfg.DSN)
}

func TestLoad_MalformedDotenv(t *testing.T) {
	clearEnv(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/.env", []byte("SQLCOMPILE_DSN='unterminated\n"), 0644))

	_, err := Load(Options{Dir: "/work", Home: "-", Fs: fs})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read .env")
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "sqlcompile.yaml", "dsn: from-file\nformat: json\ndialect: sqlite\n")
	writeFile(t, dir, ".env", "SQLCOMPILE_DSN=from-dotenv\nSQLCOMPILE_FORMAT=text\n")
	writeFile(t, dir, ".env.local", "SQLCOMPILE_FORMAT=json\n")

	cfg, err := Load(Options{Dir: dir, Home: "-"})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.DSN, ".env beats the config file")
	assert.Equal(t, "json", cfg.Format, ".env.local beats .env")
	assert.Equal(t, "sqlite", cfg.Dialect)

	t.Setenv("SQLCOMPILE_DSN", "from-env")
	cfg, err = Load(Options{Dir: dir, Home: "-"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DSN, "environment beats .env")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--dsn", "from-flag"}))
	cfg, err = Load(Options{Dir: dir, Home: "-", Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.DSN, "flags beat everything")
	assert.Equal(t, "sqlite", cfg.Dialect, "unset flags do not override")
}

func TestLoad_DatabaseURL(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	t.Setenv("DATABASE_URL", "user:pw@tcp(db:3306)/hr")
	cfg, err := Load(Options{Dir: dir, Home: "-"})
	require.NoError(t, err)
	assert.Equal(t, "user:pw@tcp(db:3306)/hr", cfg.DSN)

	t.Setenv("SQLCOMPILE_DSN", "preferred")
	cfg, err = Load(Options{Dir: dir, Home: "-"})
	require.NoError(t, err)
	assert.Equal(t, "preferred", cfg.DSN)
}

func TestLoad_DotenvDatabaseURL(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "DATABASE_URL=from-url\n")

	cfg, err := Load(Options{Dir: dir, Home: "-"})
	require.NoError(t, err)
	assert.Equal(t, "from-url", cfg.DSN)

	writeFile(t, dir, ".env.local", "SQLCOMPILE_DSN=explicit\n")
	cfg, err = Load(Options{Dir: dir, Home: "-"})
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.DSN)
}

func TestLoad_ExplicitDriver(t *testing.T) {
	clearEnv(t)
	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--dialect", "SQLite", "--driver", "custom"}))

	cfg, err := Load(Options{Dir: t.TempDir(), Home: "-", Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "custom", cfg.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantErr string
	}{
		{"unknown dialect", "dialect: oracle\n", "oracle"},
		{"unknown format", "format: xml\n", `invalid format "xml"`},
		{"malformed yaml", "dialect: [\n", "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			writeFile(t, dir, "sqlcompile.yaml", tt.file)

			_, err := Load(Options{Dir: dir, Home: "-"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDriverFor(t *testing.T) {
	assert.Equal(t, "sqlite3", DriverFor("sqlite"))
	assert.Equal(t, "mysql", DriverFor("mysql"))
}
