/*
* Loads server settings from flags, environment variables and an optional
* config file, in that order of precedence.
 */
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sinclairtarget/git-who-server/internal/git"
	"github.com/sinclairtarget/git-who-server/internal/repo"
	"github.com/sinclairtarget/git-who-server/internal/stats"
	"github.com/sinclairtarget/git-who-server/internal/tally"
)

const (
	EnvPrefix = "GITWHO"
	FileName  = "git-who-server"
)

// Setting keys. Flags use the same names.
const (
	KeyAddr             = "addr"
	KeyWorkdir          = "workdir"
	KeyLayout           = "layout"
	KeyBackend          = "backend"
	KeyGitBinary        = "git-binary"
	KeyVerifyOrigin     = "verify-origin"
	KeySplitMode        = "split-mode"
	KeyMalformed        = "malformed"
	KeyIncludeMergeOnly = "include-merge-only"
	KeyMailmap          = "mailmap"
	KeyTimeout          = "timeout"
	KeyShutdownGrace    = "shutdown-grace"
	KeyLogFormat        = "log-format"
	KeyVerbose          = "verbose"
)

type Config struct {
	Addr             string
	Workdir          string
	Layout           repo.Layout
	Backend          string
	GitBinary        string
	VerifyOrigin     bool
	Parse            tally.ParseOpts
	IncludeMergeOnly bool
	Mailmap          bool
	Timeout          time.Duration
	ShutdownGrace    time.Duration
	LogFormat        string
	Verbose          bool
}

func DefaultWorkdir() string {
	return filepath.Join(os.TempDir(), "git-who-server")
}

// Returns a viper instance with defaults, environment lookup and config file
// search paths set up.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyAddr, ":3000")
	v.SetDefault(KeyWorkdir, DefaultWorkdir())
	v.SetDefault(KeyLayout, "keyed")
	v.SetDefault(KeyBackend, "subprocess")
	v.SetDefault(KeyGitBinary, "git")
	v.SetDefault(KeyVerifyOrigin, true)
	v.SetDefault(KeySplitMode, "remainder")
	v.SetDefault(KeyMalformed, "fail")
	v.SetDefault(KeyIncludeMergeOnly, false)
	v.SetDefault(KeyMailmap, false)
	v.SetDefault(KeyTimeout, time.Duration(0))
	v.SetDefault(KeyShutdownGrace, 10*time.Second)
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyVerbose, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "git-who"))
	}

	return v
}

// Reads the config file if there is one. A missing file is not an error.
func ReadFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		logger().Debug("read config file", "path", v.ConfigFileUsed())
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}

	return fmt.Errorf("could not read config file: %w", err)
}

func Load(v *viper.Viper) (_ Config, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("invalid configuration: %w", err)
		}
	}()

	c := Config{
		Addr:             v.GetString(KeyAddr),
		Workdir:          v.GetString(KeyWorkdir),
		Backend:          v.GetString(KeyBackend),
		GitBinary:        v.GetString(KeyGitBinary),
		VerifyOrigin:     v.GetBool(KeyVerifyOrigin),
		IncludeMergeOnly: v.GetBool(KeyIncludeMergeOnly),
		Mailmap:          v.GetBool(KeyMailmap),
		Timeout:          v.GetDuration(KeyTimeout),
		ShutdownGrace:    v.GetDuration(KeyShutdownGrace),
		LogFormat:        v.GetString(KeyLogFormat),
		Verbose:          v.GetBool(KeyVerbose),
	}

	c.Layout, err = repo.ParseLayout(v.GetString(KeyLayout))
	if err != nil {
		return c, err
	}

	c.Parse.Split, err = tally.ParseSplitMode(v.GetString(KeySplitMode))
	if err != nil {
		return c, err
	}

	c.Parse.Malformed, err = tally.ParseMalformedPolicy(
		v.GetString(KeyMalformed),
	)
	if err != nil {
		return c, err
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return c, fmt.Errorf("unknown log format: %q", c.LogFormat)
	}

	if c.Workdir == "" {
		return c, errors.New("workdir must not be empty")
	}

	if c.Timeout < 0 || c.ShutdownGrace < 0 {
		return c, errors.New("durations must not be negative")
	}

	if c.Backend == "gogit" && c.Mailmap {
		return c, git.ErrMailmapUnsupported
	}

	if _, err := git.NewBackend(c.Backend, c.GitBinary); err != nil {
		return c, err
	}

	return c, nil
}

// Builds the report service these settings describe.
func (c Config) Service() (*stats.Service, error) {
	backend, err := git.NewBackend(c.Backend, c.GitBinary)
	if err != nil {
		return nil, err
	}

	sync := repo.Synchronizer{
		Root:         c.Workdir,
		Layout:       c.Layout,
		Backend:      backend,
		VerifyOrigin: c.VerifyOrigin,
	}

	opts := stats.Options{
		Parse:      c.Parse,
		Combine:    tally.CombineOpts{IncludeMergeOnly: c.IncludeMergeOnly},
		UseMailmap: c.Mailmap,
		Timeout:    c.Timeout,
	}

	return stats.NewService(sync, opts), nil
}
