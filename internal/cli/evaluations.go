package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/evalwatch/internal/filter"
	"github.com/five82/evalwatch/internal/lmeval"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var stateFlag, nameFlag, modelFlag string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List evaluations in a namespace",
		Args:    cobra.NoArgs,
		RunE: opts.withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			ns, err := e.requireNamespace()
			if err != nil {
				return err
			}
			var items []lmeval.Evaluation
			if stateFlag != "" {
				state, ok := lmeval.ParseState(stateFlag)
				if !ok {
					return fmt.Errorf("unknown state %q", stateFlag)
				}
				items, err = e.client.EvaluationsByState(cmd.Context(), ns, state)
			} else {
				items, err = e.client.ListEvaluations(cmd.Context(), ns)
			}
			if err != nil {
				return fmt.Errorf("list evaluations: %w", err)
			}

			var filters filter.State
			filters.Set(filter.Name, nameFlag)
			filters.Set(filter.Model, modelFlag)
			items = filter.Apply(items, filters)

			out := cmd.OutOrStdout()
			if e.format != formatTable {
				return encode(out, e.format, items)
			}
			now := time.Now()
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.Name,
					item.DisplayName(),
					item.Spec.Model,
					string(item.State()),
					progressCell(item.Status),
					age(item.CreationTimestamp.Time, now),
				})
			}
			return writeTable(out, []string{"NAME", "DISPLAY NAME", "MODEL", "STATE", "PROGRESS", "AGE"}, rows)
		}),
	}
	cmd.Flags().StringVar(&stateFlag, "state", "", "only show evaluations in this state (pending, running, complete, failed)")
	cmd.Flags().StringVar(&nameFlag, "name", "", "filter by display name substring")
	cmd.Flags().StringVar(&modelFlag, "model", "", "filter by model substring")
	return cmd
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show one evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			ref, err := e.ref(args[0])
			if err != nil {
				return err
			}
			eval, err := e.client.GetEvaluation(cmd.Context(), ref)
			if err != nil {
				return fmt.Errorf("get evaluation: %w", err)
			}
			out := cmd.OutOrStdout()
			if e.format != formatTable {
				return encode(out, e.format, eval)
			}
			return writeTable(out, []string{"FIELD", "VALUE"}, describe(*eval, time.Now()))
		}),
	}
}

func newResultsCommand(opts *rootOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "results NAME",
		Short: "Show the metrics of a finished evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			ref, err := e.ref(args[0])
			if err != nil {
				return err
			}
			eval, err := e.client.GetEvaluation(cmd.Context(), ref)
			if err != nil {
				return fmt.Errorf("get evaluation: %w", err)
			}
			if eval.Status == nil || eval.Status.Results == "" {
				return fmt.Errorf("evaluation %s has no results (state %s)", ref, eval.State())
			}
			out := cmd.OutOrStdout()
			if raw {
				pretty, err := lmeval.PrettyResults(eval.Status.Results)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, pretty)
				return err
			}
			rows, err := lmeval.ParseResults(eval.Status.Results)
			if err != nil {
				return err
			}
			if e.format != formatTable {
				return encode(out, e.format, rows)
			}
			cells := make([][]string, 0, len(rows))
			for _, row := range rows {
				stderr := "-"
				if row.Error != nil {
					stderr = formatScore(*row.Error)
				}
				cells = append(cells, []string{row.Task, row.Metric, formatScore(row.Value), stderr})
			}
			return writeTable(out, []string{"TASK", "METRIC", "VALUE", "STDERR"}, cells)
		}),
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the raw results document, indented")
	return cmd
}

func describe(eval lmeval.Evaluation, now time.Time) [][]string {
	rows := [][]string{
		{"Name", eval.Name},
		{"Namespace", eval.Namespace},
		{"Display name", eval.DisplayName()},
		{"Model", eval.Spec.Model},
		{"Tasks", joinOr(eval.Tasks(), "-")},
		{"State", string(eval.State())},
		{"Progress", progressCell(eval.Status)},
		{"Age", age(eval.CreationTimestamp.Time, now)},
	}
	for _, arg := range eval.Spec.ModelArgs {
		rows = append(rows, []string{"Model arg " + arg.Name, arg.Value})
	}
	if eval.Status != nil {
		if eval.Status.PodName != "" {
			rows = append(rows, []string{"Pod", eval.Status.PodName})
		}
		if msg := lmeval.StatusMessage(eval.Status); msg != "" {
			rows = append(rows, []string{"Message", msg})
		}
	}
	return rows
}

func progressCell(status *lmeval.Status) string {
	if !lmeval.IsRequestingAPI(status) {
		return "-"
	}
	return strconv.Itoa(lmeval.ExtractProgress(status)) + "%"
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// age renders a kubectl style age: 45s, 12m, 3h, 2d.
func age(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(max(d, 0).Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
