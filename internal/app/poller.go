package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/config"
	"github.com/five82/evalwatch/internal/lmeval"
	"github.com/five82/evalwatch/internal/poll"
)

const namespaceLookupTimeout = 3 * time.Second

// pollers are the two subscriptions the dashboard reads from. They start idle;
// the UI picks their keys.
type pollers struct {
	list   *poll.Evaluations
	detail *poll.Evaluation
}

func newPollers(client lmeval.Fetcher, cfg config.Config, logger *zap.Logger) *pollers {
	var listOpts, detailOpts []poll.Option
	if cfg.CollectionPoll > 0 {
		listOpts = append(listOpts, poll.WithInterval(cfg.CollectionPoll))
	}
	if cfg.ItemPoll > 0 {
		detailOpts = append(detailOpts, poll.WithInterval(cfg.ItemPoll))
	}
	return &pollers{
		list:   poll.NewEvaluations(client, logger.Named("poll"), listOpts...),
		detail: poll.NewEvaluation(client, logger.Named("poll"), detailOpts...),
	}
}

func (p *pollers) stop() {
	p.list.Stop()
	p.detail.Stop()
}

// resolveNamespace returns the visible namespaces and the one to open first:
// the configured namespace, then the remembered one if it is still visible,
// then the first visible one. A failed lookup is logged and leaves the list
// empty; the dashboard retries it after startup.
func resolveNamespace(ctx context.Context, client lmeval.Fetcher, configured, remembered string, logger *zap.Logger) ([]string, string) {
	configured = strings.TrimSpace(configured)
	remembered = strings.TrimSpace(remembered)

	ctx, cancel := context.WithTimeout(ctx, namespaceLookupTimeout)
	defer cancel()

	var names []string
	namespaces, err := client.ListNamespaces(ctx)
	if err != nil {
		logger.Warn("list namespaces failed", zap.Error(err))
	}
	for _, ns := range namespaces {
		names = append(names, ns.Name)
	}

	switch {
	case configured != "":
		return names, configured
	case remembered != "" && (len(names) == 0 || slices.Contains(names, remembered)):
		return names, remembered
	case len(names) > 0:
		return names, names[0]
	}
	return names, ""
}
