package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/evalwatch/internal/lmeval"
)

// Messages

type tickMsg time.Time

// pollMsg reports that a subscription committed a new snapshot.
type pollMsg struct{}

type namespacesMsg struct {
	names []string
	err   error
}

type modelsMsg struct {
	models []lmeval.ModelOption
	err    error
}

type createdMsg struct {
	eval *lmeval.Evaluation
	err  error
}

type deletedMsg struct {
	ref lmeval.Ref
	err error
}

// Commands

func tickCmd() tea.Cmd {
	return tea.Tick(DefaultUIInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func loadNamespacesCmd(ctx context.Context, client lmeval.Fetcher) tea.Cmd {
	if client == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		namespaces, err := client.ListNamespaces(ctx)
		if err != nil {
			return namespacesMsg{err: err}
		}
		names := make([]string, 0, len(namespaces))
		for _, ns := range namespaces {
			names = append(names, ns.Name)
		}
		return namespacesMsg{names: names}
	}
}

func loadModelsCmd(ctx context.Context, client lmeval.Fetcher, namespace string) tea.Cmd {
	if client == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		models, err := client.ListModels(ctx, namespace)
		return modelsMsg{models: models, err: err}
	}
}

func createCmd(ctx context.Context, client lmeval.Fetcher, namespace string, req lmeval.CreateRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		eval, err := client.CreateEvaluation(ctx, namespace, req)
		return createdMsg{eval: eval, err: err}
	}
}

func deleteCmd(ctx context.Context, client lmeval.Fetcher, ref lmeval.Ref) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		return deletedMsg{ref: ref, err: client.DeleteEvaluation(ctx, ref)}
	}
}
