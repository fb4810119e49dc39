// Package cli defines the evalwatch command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/app"
	"github.com/five82/evalwatch/internal/config"
	"github.com/five82/evalwatch/internal/lmeval"
	"github.com/five82/evalwatch/internal/logging"
)

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "evalwatch: %v\n", err)
		return 1
	}
	return 0
}

type rootOptions struct {
	configPath string
	prefsPath  string
	namespace  string
	apiURL     string
	output     string
	dotenv     []string

	// runTUI is swapped in tests.
	runTUI func(context.Context, app.Options) error
}

// env is what a command needs once flags, config and logging are resolved.
type env struct {
	cfg    config.Config
	format string
	logger *zap.Logger
	client *lmeval.Client
	close  func() error
}

// NewRootCommand builds the evalwatch command with every subcommand attached.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	return newRootCommand(stdout, stderr, &rootOptions{
		dotenv: []string{".env"},
		runTUI: app.Run,
	})
}

func newRootCommand(stdout, stderr io.Writer, opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "evalwatch",
		Short: "Watch and manage model evaluations",
		Long: "evalwatch is a terminal dashboard and CLI for LMEval model evaluations.\n" +
			"Run without a subcommand to open the dashboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(opts.dotenv...); err != nil {
				return err
			}
			return opts.runTUI(cmd.Context(), app.Options{
				ConfigPath: opts.configPath,
				PrefsPath:  opts.prefsPath,
				Namespace:  opts.namespace,
				APIURL:     opts.apiURL,
			})
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/evalwatch/config.toml)")
	flags.StringVarP(&opts.namespace, "namespace", "n", "", "namespace to operate in (overrides config)")
	flags.StringVar(&opts.apiURL, "api-url", "", "API base URL (overrides config)")
	flags.StringVarP(&opts.output, "output", "o", formatTable, "output format: table, json or yaml")
	root.Flags().StringVar(&opts.prefsPath, "prefs", "", "preferences file (default ~/.config/evalwatch/prefs.toml)")

	root.AddCommand(
		newListCommand(opts),
		newGetCommand(opts),
		newResultsCommand(opts),
		newCreateCommand(opts),
		newDeleteCommand(opts),
		newNamespacesCommand(opts),
		newModelsCommand(opts),
		newWhoamiCommand(opts),
		newHealthCommand(opts),
		newWatchCommand(opts),
		newMockServerCommand(opts),
		newLogsCommand(opts),
	)
	return root
}

// setup resolves configuration for a non-interactive command. Logs go to
// stderr.
func (o *rootOptions) setup(cmd *cobra.Command) (*env, error) {
	format, err := parseFormat(o.output)
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(o.dotenv...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(o.namespace); v != "" {
		cfg.Namespace = v
	}
	if v := strings.TrimSpace(o.apiURL); v != "" {
		cfg.APIURL = v
	}

	logger, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, Console: cmd.ErrOrStderr()})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	client, err := lmeval.NewClient(cfg.ClientOptions())
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("init client: %w", err)
	}
	return &env{cfg: cfg, format: format, logger: logger, client: client, close: closeLog}, nil
}

// withEnv wraps a command body with setup and teardown.
func (o *rootOptions) withEnv(fn func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := o.setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = e.close() }()
		return fn(cmd, args, e)
	}
}

func (e *env) requireNamespace() (string, error) {
	if e.cfg.Namespace == "" {
		return "", fmt.Errorf("%w: pass --namespace or set %s", lmeval.ErrNamespaceRequired, config.EnvNamespace)
	}
	return e.cfg.Namespace, nil
}

func (e *env) ref(name string) (lmeval.Ref, error) {
	ns, err := e.requireNamespace()
	if err != nil {
		return lmeval.Ref{}, err
	}
	return lmeval.Ref{Namespace: ns, Name: name}, nil
}
