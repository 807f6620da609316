package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sinclairtarget/git-who-server/internal/config"
)

var Commit = "unknown"
var Version = "unknown"

// Main builds the command tree and runs whichever subcommand was given.
func main() {
	v := config.NewViper()
	rootCmd := newRootCmd(v)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "git-who-server",
		Short:         "Reports commit and merge counts by author for a repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(v); err != nil {
				return err
			}

			return configureLogging(v)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolP(config.KeyVerbose, "v", false, "Enables debug logging")
	flags.String(config.KeyLogFormat, "text", "Log format: text or json")
	flags.String(
		config.KeyWorkdir,
		config.DefaultWorkdir(),
		"Directory holding local working copies",
	)
	flags.String(
		config.KeyLayout,
		"keyed",
		"Working copy layout: keyed (one per URL) or shared (a single slot)",
	)
	flags.String(config.KeyBackend, "subprocess", "Git backend: subprocess or gogit")
	flags.String(config.KeyGitBinary, "git", "Git binary used by the subprocess backend")
	flags.Bool(
		config.KeyVerifyOrigin,
		true,
		"Refuse to update a working copy cloned from a different URL",
	)
	flags.String(
		config.KeySplitMode,
		"remainder",
		"Author name parsing: remainder (full name) or first-token",
	)
	flags.String(config.KeyMalformed, "fail", "Malformed history lines: fail or skip")
	flags.Bool(
		config.KeyIncludeMergeOnly,
		false,
		"Report authors who only appear as merge authors",
	)
	flags.Bool(config.KeyMailmap, false, "Resolve author names through .mailmap")
	flags.Duration(
		config.KeyTimeout,
		0,
		"Maximum time to spend on one report (0 for no limit)",
	)

	err := v.BindPFlags(flags)
	if err != nil {
		panic(err)
	}

	rootCmd.AddCommand(newServeCmd(v), newReportCmd(v), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", Version, Commit)
		},
	}
}

func configureLogging(v *viper.Viper) error {
	level := slog.LevelInfo
	if v.GetBool(config.KeyVerbose) {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format := v.GetString(config.KeyLogFormat); format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format: %q", format)
	}

	slog.SetDefault(slog.New(handler))
	logger().Debug("log level set to DEBUG")
	return nil
}

func elapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
