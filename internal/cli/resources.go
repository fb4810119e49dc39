package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newNamespacesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "namespaces",
		Aliases: []string{"ns"},
		Short:   "List namespaces visible to you",
		Args:    cobra.NoArgs,
		RunE: opts.withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			namespaces, err := e.client.ListNamespaces(cmd.Context())
			if err != nil {
				return fmt.Errorf("list namespaces: %w", err)
			}
			out := cmd.OutOrStdout()
			if e.format != formatTable {
				return encode(out, e.format, namespaces)
			}
			rows := make([][]string, 0, len(namespaces))
			for _, ns := range namespaces {
				current := ""
				if ns.Name == e.cfg.Namespace {
					current = "*"
				}
				rows = append(rows, []string{current, ns.Name})
			}
			return writeTable(out, []string{"", "NAME"}, rows)
		}),
	}
}

func newModelsCommand(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List deployed models that can be evaluated",
		Args:  cobra.NoArgs,
		RunE: opts.withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			ns := e.cfg.Namespace
			if all {
				ns = ""
			}
			models, err := e.client.ListModels(cmd.Context(), ns)
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			out := cmd.OutOrStdout()
			if e.format != formatTable {
				return encode(out, e.format, models)
			}
			rows := make([][]string, 0, len(models))
			for _, m := range models {
				rows = append(rows, []string{m.Value, m.DisplayName, m.Namespace, m.Service})
			}
			return writeTable(out, []string{"VALUE", "DISPLAY NAME", "NAMESPACE", "SERVICE"}, rows)
		}),
	}
	cmd.Flags().BoolVarP(&all, "all-namespaces", "A", false, "list models in every namespace")
	return cmd
}

func newWhoamiCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity the backend resolved",
		Args:  cobra.NoArgs,
		RunE: opts.withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			user, err := e.client.CurrentUser(cmd.Context())
			if err != nil {
				return fmt.Errorf("get user: %w", err)
			}
			out := cmd.OutOrStdout()
			if e.format != formatTable {
				return encode(out, e.format, user)
			}
			return writeTable(out, []string{"USER", "CLUSTER ADMIN", "MODE"}, [][]string{
				{user.UserID, strconv.FormatBool(user.ClusterAdmin), string(e.cfg.Mode)},
			})
		}),
	}
}

func newHealthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: opts.withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			health, err := e.client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check %s: %w", e.client.BaseURL(), err)
			}
			out := cmd.OutOrStdout()
			if e.format != formatTable {
				return encode(out, e.format, health)
			}
			_, err = fmt.Fprintf(out, "%s: %s\n", e.client.BaseURL(), health.Status)
			return err
		}),
	}
}
