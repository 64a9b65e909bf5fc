package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "maildigest",
		Short:        "maildigest mails you a daily summary of today's inbox",
		Long:         "Without a subcommand maildigest stays resident and sends the digest every day at the configured time.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runSchedule,
	}

	cmd.PersistentFlags().String("log-level", "info", "Logging level: debug, info, warn, error")

	cmd.AddCommand(newNowCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newNextCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newConfigCmd())

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)

	return cmd
}

func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
