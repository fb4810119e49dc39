// Package lmeval provides the evaluation resource model and an HTTP client for
// the evaluation backend (BFF).
//
// # Client Usage
//
//	client, err := lmeval.NewClient(lmeval.Options{
//		BaseURL:  "http://localhost:8080/api/v1",
//		Mode:     lmeval.ModeStandalone,
//		Identity: "user@example.com",
//	})
//	if err != nil {
//		return err
//	}
//	items, err := client.ListEvaluations(ctx, "ds-project-1")
//
// Paths are resolved relative to the base URL, so a base of
// "http://host/api/v1" sends list requests to "/api/v1/evaluations".
//
// # Headers
//
// Every request carries Content-Type: application/json. Outside the kubeflow
// deployment mode the configured identity is sent as "kubeflow-userid"; in
// kubeflow mode the reverse proxy injects it.
//
// # Errors
//
// Non-2xx responses become *APIError. The message is taken from the
// {"error":{"message":...}} body when one decodes, otherwise it reads
// "HTTP <code>: <status text>". Transport and decode failures are wrapped
// with "execute request" and "decode response".
//
// # Status
//
// Status is opaque server data. ClassifyState folds it into four lifecycle
// states; unrecognized raw states read as Pending. ExtractProgress reads the
// "Requesting API" progress entry and never returns outside [0,100].
// ParseResults flattens the lm-eval-harness results document into rows.
package lmeval
