package main

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/rulesls/cmd/rulesls/check"
	"github.com/walteh/rulesls/cmd/rulesls/complete"
	"github.com/walteh/rulesls/cmd/rulesls/options"
	"github.com/walteh/rulesls/cmd/rulesls/tokens"
)

func main() {
	if err := run(); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func run() error {
	opts := &options.Options{}

	rootCmd := &cobra.Command{
		Use:           "rulesls",
		Short:         "Checks and completes Cosmoteer .rules files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.Bind(rootCmd.PersistentFlags())

	info, ok := debug.ReadBuildInfo()
	if !ok {
		rootCmd.Version = "unknown"
	} else {
		rootCmd.Version = info.Main.Version
	}

	cmdVersion := &cobra.Command{
		Use: "raw-version",
		Run: func(cmdz *cobra.Command, args []string) {
			cmdz.Println(rootCmd.Version)
		},
		Hidden: true,
	}

	rootCmd.AddCommand(cmdVersion)
	rootCmd.AddCommand(check.NewCheckCommand(opts))
	rootCmd.AddCommand(complete.NewCompleteCommand(opts))
	rootCmd.AddCommand(tokens.NewTokensCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return errors.Errorf("failed to execute command: %w", err)
	}

	return nil
}
