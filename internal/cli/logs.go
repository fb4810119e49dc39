package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/five82/evalwatch/internal/config"
	"github.com/five82/evalwatch/internal/logtail"
)

const defaultLogLines = 100

// newLogsCommand prints the tail of the dashboard log file. It needs no
// backend, so it skips withEnv.
func newLogsCommand(opts *rootOptions) *cobra.Command {
	var (
		lines   int
		level   string
		raw     bool
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent dashboard log entries",
		Long: "The dashboard writes its log to a file while it owns the terminal.\n" +
			"logs prints the newest entries of that file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(opts.dotenv...); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			minLevel := zapcore.DebugLevel
			if strings.TrimSpace(level) != "" {
				if minLevel, err = zapcore.ParseLevel(level); err != nil {
					return fmt.Errorf("invalid --level %q", level)
				}
			}

			entries, err := logtail.Read(cfg.LogFile, lines)
			if err != nil {
				return err
			}
			entries = logtail.Filter(entries, minLevel)

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, err := fmt.Fprintf(out, "No log entries in %s\n", cfg.LogFile)
				return err
			}
			if !raw {
				palette := logtail.DefaultPalette()
				if noColor {
					palette = logtail.Palette{}
				}
				entries = logtail.FormatLines(entries, palette)
			}
			for _, line := range entries {
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&lines, "lines", "l", defaultLogLines, "number of lines to read from the end (0 for all)")
	flags.StringVar(&level, "level", "", "minimum level to show: debug, info, warn or error")
	flags.BoolVar(&raw, "raw", false, "print the JSON lines as written")
	flags.BoolVar(&noColor, "no-color", false, "disable colors")
	return cmd
}
