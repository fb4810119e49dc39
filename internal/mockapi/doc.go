// Package mockapi serves the evaluation REST surface from memory.
//
// It backs `evalwatch mock-server`, local development of the dashboard and
// the end-to-end tests of the client and pollers. Routes live under BasePath
// and mirror the real backend:
//
//	GET    /health
//	GET    /namespaces
//	GET    /models[?namespace=]
//	GET    /user
//	GET    /evaluations[?namespace=]
//	POST   /evaluations?namespace=
//	GET    /evaluations/{name}?namespace=
//	PUT    /evaluations/{name}?namespace=
//	DELETE /evaluations/{name}?namespace=
//
// Every route except /health requires the kubeflow-userid header unless the
// server is built with WithIdentityRequired(false). Errors use the
// {"error": {"code", "message"}} envelope.
//
// # Fixtures
//
// The seed data is embedded from fixtures.yaml. Create bodies are checked
// against the embedded create_request.schema.json before they are stored.
//
// # Simulation
//
// Advance walks unfinished evaluations forward (Scheduled, Running in
// ProgressStep increments, Complete with generated results). Simulate runs
// Advance on a ticker.
package mockapi
