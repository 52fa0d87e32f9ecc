// Command meradinctl is the operator tool for the Mera Din site: it writes
// ops credentials and smoke-tests a running deployment.
package main

import (
	"fmt"
	"os"

	"github.com/okian/meradin/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "meradinctl",
		Short:        "Operator tool for the Mera Din site",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWith(cmd.ErrOrStderr(), "text"); err != nil {
				return err
			}
			if err := logger.SetLevelString(logLevel); err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.AddCommand(newHashPasswordCmd(), newCheckCmd())
	return root
}
