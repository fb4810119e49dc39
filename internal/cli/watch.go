package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/lmeval"
	"github.com/five82/evalwatch/internal/poll"
	"github.com/five82/evalwatch/internal/state"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch NAME",
		Short: "Follow an evaluation until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			ref, err := e.ref(args[0])
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = e.cfg.ItemPoll
			}
			sub := poll.NewEvaluation(e.client, e.logger,
				poll.WithInterval(interval),
				poll.WithName("watch"))
			return watch(cmd, sub, ref, e.logger)
		}),
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config item_poll)")
	return cmd
}

// watch prints one line per observed change and returns once the evaluation
// reaches a terminal state. A failed evaluation is returned as an error.
func watch(cmd *cobra.Command, sub *poll.Evaluation, ref lmeval.Ref, logger *zap.Logger) error {
	updates := make(chan state.Snapshot[*lmeval.Evaluation], 1)
	sub.OnUpdate(func(s state.Snapshot[*lmeval.Evaluation]) {
		// Keep only the newest snapshot.
		select {
		case <-updates:
		default:
		}
		updates <- s
	})
	sub.Start(ref)
	defer sub.Stop()

	out := cmd.OutOrStdout()
	var last string
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case snap := <-updates:
			if snap.Err != nil {
				if lmeval.IsNotFound(snap.Err) {
					return fmt.Errorf("watch %s: %w", ref, snap.Err)
				}
				if snap.IsOffline() {
					logger.Warn("backend unreachable", zap.String("evaluation", ref.String()), zap.Error(snap.Err))
				}
				continue
			}
			eval := snap.Data
			if eval == nil {
				continue
			}
			line := watchLine(*eval)
			if line != last {
				last = line
				if err := printWatchLine(out, line); err != nil {
					return err
				}
			}
			switch eval.State() {
			case lmeval.StateComplete:
				return nil
			case lmeval.StateFailed:
				return fmt.Errorf("evaluation %s failed: %s", ref, lmeval.StatusMessage(eval.Status))
			}
		}
	}
}

func watchLine(eval lmeval.Evaluation) string {
	line := string(eval.State())
	if lmeval.IsRequestingAPI(eval.Status) {
		line += fmt.Sprintf("  %d%%", lmeval.ExtractProgress(eval.Status))
	}
	return line + "  " + lmeval.StatusMessage(eval.Status)
}

func printWatchLine(w io.Writer, line string) error {
	_, err := fmt.Fprintf(w, "%s  %s\n", time.Now().Format("15:04:05"), line)
	return err
}
