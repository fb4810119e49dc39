package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/config"
	"github.com/five82/evalwatch/internal/lmeval"
	"github.com/five82/evalwatch/internal/logging"
	"github.com/five82/evalwatch/internal/prefs"
	"github.com/five82/evalwatch/internal/ui"
)

// Options configure the dashboard. Non-empty values override the config file.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/evalwatch/prefs.toml
	Namespace  string
	APIURL     string
}

// Run boots the dashboard until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(opts.Namespace); v != "" {
		cfg.Namespace = v
	}

	// The dashboard owns the terminal, so logs only go to the file.
	logger, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = closeLog() }()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("load prefs failed, using defaults", zap.Error(err))
	}

	client, err := lmeval.NewClient(cfg.ClientOptions())
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}

	p := newPollers(client, cfg, logger)
	defer p.stop()

	namespaces, namespace := resolveNamespace(ctx, client, cfg.Namespace, userPrefs.Namespace, logger)
	userCtx, cancel := context.WithTimeout(ctx, namespaceLookupTimeout)
	admin := client.IsClusterAdmin(userCtx)
	cancel()
	logger.Info("dashboard starting",
		zap.String("api_url", client.BaseURL()),
		zap.String("mode", string(cfg.Mode)),
		zap.String("namespace", namespace),
		zap.Bool("cluster_admin", admin),
		zap.Duration("collection_poll", cfg.CollectionPoll),
		zap.Duration("item_poll", cfg.ItemPoll))

	return ui.Run(ui.Options{
		Context:     ctx,
		Client:      client,
		Evaluations: p.list,
		Detail:      p.detail,
		Namespaces:  namespaces,
		Namespace:   namespace,
		ThemeName:   userPrefs.Theme,
		PrefsPath:   opts.PrefsPath,
		APIURL:      client.BaseURL(),
		Logger:      logger,
	})
}
