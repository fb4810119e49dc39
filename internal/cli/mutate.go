package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/form"
)

type createFlags struct {
	displayName       string
	resourceName      string
	deployedModel     string
	modelType         string
	url               string
	tokenizer         string
	tokenizedRequests string
	tasks             string
	allowRemoteCode   bool
	allowOnline       bool
	batchSize         string
}

func newCreateCommand(opts *rootOptions) *cobra.Command {
	var f createFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new evaluation",
		Example: "  evalwatch create -n ds-project-1 --name \"Llama nightly\" \\\n" +
			"    --model llama2-7b-chat-predictor --model-type local-completions \\\n" +
			"    --tokenizer meta-llama/Llama-2-7b-chat-hf --tasks hellaswag,arc_easy",
		Args: cobra.NoArgs,
		RunE: opts.withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			ns, err := e.requireNamespace()
			if err != nil {
				return err
			}
			visible, err := e.client.NamespaceAccessible(cmd.Context(), ns)
			if err != nil {
				return fmt.Errorf("check namespace: %w", err)
			}
			if !visible {
				return fmt.Errorf("namespace %q is not visible to you", ns)
			}

			data := form.NewData()
			data.EvaluationName = strings.TrimSpace(f.displayName)
			data.Tasks = form.ParseTasks(f.tasks)
			data.AllowRemoteCode = f.allowRemoteCode
			data.AllowOnline = f.allowOnline
			data.BatchSize = strings.TrimSpace(f.batchSize)
			data.Model.Tokenizer = strings.TrimSpace(f.tokenizer)
			if f.tokenizedRequests != "" {
				data.Model.TokenizedRequest = f.tokenizedRequests
			}
			data = form.SelectModelType(data, strings.TrimSpace(f.modelType))
			if f.deployedModel != "" {
				models, err := e.client.ListModels(cmd.Context(), ns)
				if err != nil {
					return fmt.Errorf("list models: %w", err)
				}
				data = form.SelectModel(data, f.deployedModel, models)
				if data.Model.Name == "" {
					return fmt.Errorf("model %q is not deployed in %s", f.deployedModel, ns)
				}
			}
			if f.url != "" {
				data.Model.URL = strings.TrimSpace(f.url)
			}

			name := form.NewNameField(data.EvaluationName)
			if f.resourceName != "" {
				name.SetValue(f.resourceName)
			}
			if !form.IsSubmittable(data, name) {
				return errors.New("incomplete evaluation: missing " + strings.Join(form.Missing(data, name), ", "))
			}

			created, err := e.client.CreateEvaluation(cmd.Context(), ns, form.BuildCreateRequest(data, name))
			if err != nil {
				return fmt.Errorf("create evaluation: %w", err)
			}
			e.logger.Info("created evaluation",
				zap.String("namespace", created.Namespace),
				zap.String("name", created.Name))

			out := cmd.OutOrStdout()
			if e.format != formatTable {
				return encode(out, e.format, created)
			}
			_, err = fmt.Fprintf(out, "evaluation %s created\n", created.Ref())
			return err
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&f.displayName, "name", "", "evaluation display name")
	flags.StringVar(&f.resourceName, "resource-name", "", "resource name (derived from --name when empty)")
	flags.StringVar(&f.deployedModel, "model", "", "deployed model value, see `evalwatch models`")
	flags.StringVar(&f.modelType, "model-type", form.ModelTypes[0].Key, "model interaction style (local-completions or local-chat-completions)")
	flags.StringVar(&f.url, "url", "", "model endpoint URL (overrides the deployed model's service)")
	flags.StringVar(&f.tokenizer, "tokenizer", "", "tokenizer name or path")
	flags.StringVar(&f.tokenizedRequests, "tokenized-requests", "", "send tokenized requests (True or False)")
	flags.StringVar(&f.tasks, "tasks", "", "comma separated benchmark tasks")
	flags.BoolVar(&f.allowRemoteCode, "allow-remote-code", false, "allow datasets to execute remote code")
	flags.BoolVar(&f.allowOnline, "allow-online", false, "allow the job to download models and datasets")
	flags.StringVar(&f.batchSize, "batch-size", "", "evaluation batch size")
	return cmd
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete an evaluation",
		Args:    cobra.ExactArgs(1),
		RunE: opts.withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			ref, err := e.ref(args[0])
			if err != nil {
				return err
			}
			if err := e.client.DeleteEvaluation(cmd.Context(), ref); err != nil {
				return fmt.Errorf("delete evaluation: %w", err)
			}
			e.logger.Info("deleted evaluation",
				zap.String("namespace", ref.Namespace),
				zap.String("name", ref.Name))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "evaluation %s deleted\n", ref)
			return err
		}),
	}
}
