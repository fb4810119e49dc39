// Package app is the composition root for the evalwatch dashboard.
//
// # Overview
//
// Run loads configuration, opens the log file, builds the REST client and the
// two poll subscriptions, picks the starting namespace and hands everything
// to the ui package. Command line subcommands do not go through this package;
// they build their own client in internal/cli.
//
// # Components
//
//   - app.go: Options and Run
//   - poller.go: subscription construction and namespace resolution
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()        File, then env, then Options overrides
//	       ├─────> logging.New()        File only; the TUI owns the terminal
//	       ├─────> prefs.Load()         Theme and last namespace
//	       ├─────> lmeval.NewClient()   REST client
//	       ├─────> newPollers()         Idle collection + item subscriptions
//	       ├─────> resolveNamespace()   Starting namespace
//	       └─────> ui.Run()             Dashboard (blocks)
//
//	Subscriptions (one goroutine each while started):
//	┌─────────────────────────────────────────┐
//	│ poll.Evaluations  key = namespace  5s   │
//	│ poll.Evaluation   key = ns/name    3s   │
//	│  └─> state.Store.Commit / Fail          │
//	│      └─> OnUpdate ─> ui pollMsg         │
//	└─────────────────────────────────────────┘
//
// # Namespace Selection
//
// The first namespace shown is, in order: --namespace or EVALWATCH_NAMESPACE
// or the config file, the namespace remembered in prefs when it is still
// visible, and finally the first namespace the backend lists.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Invalid configuration file or environment overrides
//   - Log file cannot be opened
//   - Malformed API URL
//
// Recoverable errors (logged, dashboard keeps running):
//   - Unreadable prefs file
//   - Namespace lookup failure at startup
//   - Every poll failure; the header switches to offline after two in a row
package app
