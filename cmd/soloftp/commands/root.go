// Package commands implements the soloftp CLI.
package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "soloftp",
	Short: "soloftp - single-client FTP file server",
	Long: `soloftp serves one FTP client at a time over a directory of the local
filesystem, the way a small embedded file server does: one session, one
transfer, a fixed passive data port. An optional SFTP gateway exposes the
same directory and credentials over SSH.

All flags can also be set through SOLOFTP_* environment variables, e.g.
SOLOFTP_LOG_LEVEL=DEBUG.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("soloftp %s (commit: %s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetEnvPrefix("SOLOFTP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogger builds the process logger from the configured level. DEBUG
// also turns on source locations, which is where the per-reply logging of
// the control channel becomes readable.
func setupLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	addSource := false
	switch viper.GetString("log-level") {
	case "DEBUG":
		logLevel = slog.LevelDebug
		addSource = true
	case "INFO":
		logLevel = slog.LevelInfo
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	}

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		AddSource: addSource,
		Level:     logLevel,
	})
	logger := slog.New(handler).With("app", "soloftp")
	slog.SetDefault(logger)
	return logger
}
