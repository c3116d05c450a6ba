// Command ntagctl provisions, reads, writes, and diagnoses NXP NTAG 424
// DNA tags over PC/SC.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/nfctools/internal/config"
	"github.com/barnettlynn/nfctools/ntag424"
)

var (
	configPath string
	verbose    bool
	jsonLogs   bool
)

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if jsonLogs {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(configPath)
}

func connect(readerIndex int) (*ntag424.Connection, error) {
	return ntag424.Connect(readerIndex)
}

func loadKey(path string) ([]byte, error) {
	if path == "" {
		return make([]byte, 16), nil
	}
	return ntag424.LoadKeyHexFile(path)
}

func main() {
	root := &cobra.Command{
		Use:           "ntagctl",
		Short:         "Provision, read, write, and diagnose NTAG 424 DNA tags",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to ntagctl config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "emit logs as JSON")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger())
	}

	root.AddCommand(
		newDiagnoseCmd(),
		newProvisionCmd(),
		newResetCmd(),
		newReadCmd(),
		newWriteCmd(),
		newSettingsCmd(),
		newConfigureCmd(),
		newChangeKeyCmd(),
		newSDMCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
