package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/EgorLis/encoderpc/internal/middleware"
)

func newAbortCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "abort ID",
		Short: "Abort a running encode job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := parseJobID(args[0])
			return ctx.withSession(cmd, func(_ *middleware.Middleware, session *middleware.Session) error {
				callCtx, cancel := ctx.requestContext(cmd.Context())
				defer cancel()

				removed, err := session.Abort(callCtx, id)
				if err != nil {
					return errors.Wrapf(err, "abort job %s", id)
				}
				if !removed {
					return errors.Errorf("job %s not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %s aborted\n", id)
				return nil
			})
		},
	}
}
