package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EgorLis/encoderpc/internal/middleware"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "encode FILE [OPTION...]",
		Short: "Start an encode job and follow its progress",
		Long: `Start an encode job for FILE. OPTION values that parse as JSON
are sent as JSON values (numbers, booleans, objects), everything else as
strings, in the order given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(_ *middleware.Middleware, session *middleware.Session) error {
				return ctx.runEncode(cmd, session, args[0], parseOptions(args[1:]), detach)
			})
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVar(&detach, "detach", false, "Return as soon as the job has started")
	return cmd
}

func (c *commandContext) runEncode(cmd *cobra.Command, session *middleware.Session, file string, opts []any, detach bool) error {
	out := cmd.OutOrStdout()
	renderer := newProgressRenderer(out, file)
	started := time.Now()

	startCtx, cancel := c.requestContext(cmd.Context())
	job, err := session.Encode(startCtx, renderer.update, file, opts...)
	cancel()
	if err != nil {
		renderer.finish(err)
		return errors.Wrapf(err, "start encode of %s", file)
	}

	if detach {
		job.Stop()
		renderer.finish(nil)
		fmt.Fprintf(out, "job %s started\n", job.ID())
		return nil
	}

	var result error
	select {
	case <-job.Done():
		result = job.Err()
	case <-cmd.Context().Done():
		result = cmd.Context().Err()
		c.abortOnInterrupt(job)
	}
	renderer.finish(result)

	fmt.Fprintln(out, renderSummary(jobSummary{
		ID:      job.ID().String(),
		File:    file,
		Updates: job.Updates(),
		Elapsed: time.Since(started),
		Err:     result,
	}, isTerminal(out)))
	return result
}

// abortOnInterrupt снимает задание на сервере, когда пользователь прервал
// ожидание.
func (c *commandContext) abortOnInterrupt(job *middleware.Job) {
	logger := c.ensureLogger().With(zap.Stringer("job", job.ID()))
	ctx, cancel := c.requestContext(context.Background())
	defer cancel()

	removed, err := job.Abort(ctx)
	if err != nil {
		logger.Warn("abort after interrupt failed", zap.Error(err))
		return
	}
	logger.Info("aborted after interrupt", zap.Bool("removed", removed))
	job.Stop()
}
