// Package config resolves command-line settings from layered sources.
//
// Precedence, highest first:
//
//  1. command-line flags (only flags the user actually set)
//  2. SQLCOMPILE_* environment variables (DATABASE_URL also feeds dsn)
//  3. .env.local, then .env, in the working directory
//  4. sqlcompile.yaml in the working directory or $HOME/.config/sqlcompile
//  5. defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/sqlcompile/internal/querysql"
	"github.com/roach88/sqlcompile/internal/store"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "SQLCOMPILE"

// Keys are the configuration keys shared by the config file, the
// environment and the flag set.
var Keys = []string{"dialect", "driver", "dsn", "format", "verbose"}

// Config holds resolved settings.
type Config struct {
	Dialect string // "mysql" or "sqlite"
	Driver  string // database/sql driver name
	DSN     string // data source name for exec and introspect
	Format  string // "text" or "json"
	Verbose bool

	// File is the config file that was read, "" when none was found.
	File string
}

// Options control where Load looks.
type Options struct {
	// Flags, when set, overrides file and environment values for every
	// flag in Keys that was changed on the command line.
	Flags *pflag.FlagSet

	// Dir is searched for sqlcompile.yaml, .env and .env.local.
	// Defaults to the working directory.
	Dir string

	// Home is the user's home directory. Defaults to homedir.Dir;
	// "-" disables the home lookup.
	Home string

	// Fs is the filesystem config and .env files are read from.
	// Defaults to the OS filesystem.
	Fs afero.Fs
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigName("sqlcompile")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if home := homeDir(opts.Home); home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "sqlcompile"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("dsn", EnvPrefix+"_DSN", "DATABASE_URL"); err != nil {
		return nil, err
	}

	v.SetDefault("dialect", "mysql")
	v.SetDefault("driver", "")
	v.SetDefault("dsn", "")
	v.SetDefault("format", "text")
	v.SetDefault("verbose", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	dotenv, err := readDotenv(fs, dir)
	if err != nil {
		return nil, err
	}
	if len(dotenv) > 0 {
		// Merged into the file layer, so real environment variables and
		// flags still win.
		if err := v.MergeConfigMap(dotenv); err != nil {
			return nil, fmt.Errorf("merge .env: %w", err)
		}
	}

	if opts.Flags != nil {
		for _, key := range Keys {
			if f := opts.Flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", key, err)
				}
			}
		}
	}

	cfg := &Config{
		Dialect: strings.ToLower(v.GetString("dialect")),
		Driver:  v.GetString("driver"),
		DSN:     v.GetString("dsn"),
		Format:  v.GetString("format"),
		Verbose: v.GetBool("verbose"),
		File:    v.ConfigFileUsed(),
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish validates the resolved values and derives the driver.
func (c *Config) finish() error {
	d, err := querysql.DialectByName(c.Dialect)
	if err != nil {
		return err
	}
	c.Dialect = d.Name()

	if c.Driver == "" {
		c.Driver = DriverFor(c.Dialect)
	}

	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: must be text or json", c.Format)
	}
	return nil
}

// DriverFor returns the database/sql driver that serves a dialect.
func DriverFor(dialect string) string {
	if dialect == "sqlite" {
		return store.DriverSQLite
	}
	return store.DriverMySQL
}

// readDotenv reads .env and then .env.local from dir and returns the
// SQLCOMPILE_* entries keyed by config key. Missing files are skipped.
func readDotenv(fs afero.Fs, dir string) (map[string]any, error) {
	out := make(map[string]any)
	var databaseURL string
	for _, name := range []string{".env", ".env.local"} {
		env, err := parseDotenv(fs, filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if url, ok := env["DATABASE_URL"]; ok {
			databaseURL = url
		}
		for k, val := range env {
			key, ok := strings.CutPrefix(k, EnvPrefix+"_")
			if !ok {
				continue
			}
			out[strings.ToLower(key)] = val
		}
	}
	// DATABASE_URL only fills dsn when no SQLCOMPILE_DSN entry exists.
	if _, ok := out["dsn"]; !ok && databaseURL != "" {
		out["dsn"] = databaseURL
	}
	return out, nil
}

func parseDotenv(fs afero.Fs, path string) (map[string]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return godotenv.Parse(f)
}

func homeDir(home string) string {
	switch home {
	case "-":
		return ""
	case "":
		h, err := homedir.Dir()
		if err != nil {
			return ""
		}
		return h
	default:
		return home
	}
}
