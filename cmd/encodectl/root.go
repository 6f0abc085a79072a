package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "encodectl",
		Short:         "Encoding server client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.endpoint, "endpoint", "", "Server address (ws:// or wss://)")
	pf.StringVar(&flags.user, "user", "", "User name for auth.login")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newEncodeCommand(ctx))
	rootCmd.AddCommand(newAbortCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
