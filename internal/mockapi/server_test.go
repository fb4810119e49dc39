package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/lmeval"
	"github.com/five82/evalwatch/internal/poll"
	"github.com/five82/evalwatch/internal/state"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *lmeval.Client) {
	t.Helper()
	srv, err := NewDefault(opts...)
	if err != nil {
		t.Fatalf("NewDefault: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client, err := lmeval.NewClient(lmeval.Options{
		BaseURL:  ts.URL + BasePath,
		Identity: "tester@example.com",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return srv, client
}

func TestDefaultFixtures(t *testing.T) {
	f, err := DefaultFixtures()
	if err != nil {
		t.Fatalf("DefaultFixtures: %v", err)
	}
	if len(f.Namespaces) != 3 || f.Namespaces[0].Name != "ds-project-1" {
		t.Fatalf("namespaces = %+v", f.Namespaces)
	}
	seen := map[string]bool{}
	for _, eval := range f.Evaluations {
		if eval.UID == "" {
			t.Fatalf("%s has no uid", eval.Name)
		}
		if seen[string(eval.UID)] {
			t.Fatalf("duplicate uid %s", eval.UID)
		}
		seen[string(eval.UID)] = true
	}

	var running *lmeval.Evaluation
	for i := range f.Evaluations {
		if f.Evaluations[i].Name == "mistral-eval-running" {
			running = &f.Evaluations[i]
		}
	}
	if running == nil {
		t.Fatalf("mistral-eval-running missing from fixtures")
	}
	if got := running.State(); got != lmeval.StateInProgress {
		t.Fatalf("state = %q, want %q", got, lmeval.StateInProgress)
	}
	if got := lmeval.ExtractProgress(running.Status); got != 47 {
		t.Fatalf("progress = %d, want 47", got)
	}
}

func TestParseFixtures_RejectsIncompleteEvaluation(t *testing.T) {
	_, err := ParseFixtures([]byte("evaluations:\n  - name: orphan\n"), time.Now())
	if err == nil || !strings.Contains(err.Error(), "parse fixtures") {
		t.Fatalf("err = %v, want parse fixtures error", err)
	}
}

func TestServer_ReadEndpoints(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	items, err := client.ListEvaluations(ctx, "ds-project-1")
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}

	eval, err := client.GetEvaluation(ctx, lmeval.Ref{Namespace: "ds-project-1", Name: "llama-eval-completed"})
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if eval.DisplayName() != "Llama Model Evaluation - Completed" || eval.State() != lmeval.StateComplete {
		t.Fatalf("eval = %s / %s", eval.DisplayName(), eval.State())
	}
	rows, err := lmeval.ParseResults(eval.Status.Results)
	if err != nil || len(rows) != 4 {
		t.Fatalf("ParseResults rows=%d err=%v", len(rows), err)
	}

	_, err = client.GetEvaluation(ctx, lmeval.Ref{Namespace: "ds-project-2", Name: "llama-eval-completed"})
	if !lmeval.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}

	namespaces, err := client.ListNamespaces(ctx)
	if err != nil || len(namespaces) != 3 {
		t.Fatalf("ListNamespaces = %v, %v", namespaces, err)
	}

	models, err := client.ListModels(ctx, "ds-project-1")
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	for _, m := range models {
		if m.Namespace != "ds-project-1" {
			t.Fatalf("model %s leaked from %s", m.Value, m.Namespace)
		}
	}
	all, err := client.ListModels(ctx, "")
	if err != nil || len(all) <= len(models) {
		t.Fatalf("unfiltered models = %d (%v), filtered = %d", len(all), err, len(models))
	}

	user, err := client.CurrentUser(ctx)
	if err != nil || user.UserID != "tester@example.com" || user.ClusterAdmin {
		t.Fatalf("CurrentUser = %+v, %v", user, err)
	}
	if client.IsClusterAdmin(ctx) {
		t.Fatalf("IsClusterAdmin = true")
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("Health = %+v, %v", health, err)
	}
}

func TestServer_RequiresIdentity(t *testing.T) {
	srv, err := NewDefault()
	if err != nil {
		t.Fatalf("NewDefault: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, BasePath+"/namespaces", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body lmeval.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error == nil {
		t.Fatalf("error body = %q (%v)", rec.Body.String(), err)
	}
	if !strings.Contains(body.Error.Message, lmeval.IdentityHeader) {
		t.Fatalf("message = %q", body.Error.Message)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, BasePath+"/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}

	open := New(Fixtures{}, WithIdentityRequired(false))
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, BasePath+"/namespaces", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status without identity requirement = %d, want 200", rec.Code)
	}
}

func TestServer_UnknownRouteUsesErrorEnvelope(t *testing.T) {
	srv := New(Fixtures{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestServer_CreateUpdateDelete(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()

	created, err := client.CreateEvaluation(ctx, "ds-project-2", lmeval.CreateRequest{
		EvaluationName: "Granite rerun",
		ModelType:      "local-completions",
		Model: lmeval.ModelConfig{
			Name:             "granite-3b-code-predictor",
			URL:              "http://granite.ds-project-2.svc.cluster.local:80/v1/completions",
			TokenizedRequest: "False",
			Tokenizer:        "ibm-granite/granite-3b-code-base",
		},
		Tasks: []string{"humaneval"},
	})
	if err != nil {
		t.Fatalf("CreateEvaluation: %v", err)
	}
	if created.Name != "granite-rerun" || created.UID == "" {
		t.Fatalf("created = %s uid=%q", created.Name, created.UID)
	}
	if created.State() != lmeval.StatePending || !created.Spec.LogSamples {
		t.Fatalf("created state=%s logSamples=%v", created.State(), created.Spec.LogSamples)
	}
	if created.Spec.Outputs == nil || created.Spec.Outputs.PVCManaged.Size != "100Mi" {
		t.Fatalf("outputs = %+v", created.Spec.Outputs)
	}
	args := map[string]string{}
	for _, arg := range created.Spec.ModelArgs {
		args[arg.Name] = arg.Value
	}
	if args["model"] != "granite-3b-code" || args["base_url"] != "http://granite.ds-project-2.svc.cluster.local/v1/completions" {
		t.Fatalf("model args = %v", args)
	}
	if args["num_concurrent"] != "1" || args["max_retries"] != "3" {
		t.Fatalf("model args = %v", args)
	}

	_, err = client.CreateEvaluation(ctx, "ds-project-2", lmeval.CreateRequest{
		EvaluationName: "Granite rerun", ModelType: "local-completions", Tasks: []string{"humaneval"},
	})
	var apiErr *lmeval.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create err = %v, want 409", err)
	}

	created.Status.Message = "patched"
	updated, err := client.UpdateEvaluation(ctx, *created)
	if err != nil {
		t.Fatalf("UpdateEvaluation: %v", err)
	}
	if updated.UID != created.UID || updated.ResourceVersion != "2" || updated.Status.Message != "patched" {
		t.Fatalf("updated = uid %s rv %s msg %q", updated.UID, updated.ResourceVersion, updated.Status.Message)
	}

	ref := created.Ref()
	if err := client.DeleteEvaluation(ctx, ref); err != nil {
		t.Fatalf("DeleteEvaluation: %v", err)
	}
	if err := client.DeleteEvaluation(ctx, ref); !lmeval.IsNotFound(err) {
		t.Fatalf("second delete err = %v, want not found", err)
	}
	if got := len(srv.Evaluations("ds-project-2")); got != 1 {
		t.Fatalf("ds-project-2 has %d evaluations, want 1", got)
	}
}

func TestServer_CreateValidation(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	cases := map[string]struct {
		req  lmeval.CreateRequest
		want string
	}{
		"missing name":  {lmeval.CreateRequest{ModelType: "hf", Tasks: []string{"mmlu"}}, "evaluationName"},
		"missing type":  {lmeval.CreateRequest{EvaluationName: "x", Tasks: []string{"mmlu"}}, "modelType"},
		"missing tasks": {lmeval.CreateRequest{EvaluationName: "x", ModelType: "hf"}, "tasks"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := client.CreateEvaluation(ctx, "ds-project-1", tc.req)
			var apiErr *lmeval.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
				t.Fatalf("err = %v, want 400", err)
			}
			if !strings.Contains(apiErr.Message, tc.want) {
				t.Fatalf("message = %q, want it to mention %q", apiErr.Message, tc.want)
			}
		})
	}
}

func TestSupportedModelType(t *testing.T) {
	cases := map[string]string{
		"llama-7b":               "local-completions",
		"openai":                 "openai-completions",
		"huggingface":            "hf",
		"watsonx":                "watsonx_llm",
		"textsynth":              "textsynth",
		"local-chat-completions": "local-chat-completions",
		"something-else":         "local-completions",
	}
	for in, want := range cases {
		if got := SupportedModelType(in); got != want {
			t.Fatalf("SupportedModelType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServer_AdvanceCompletesEvaluations(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()
	ref := lmeval.Ref{Namespace: "ds-project-3", Name: "eval-2"}

	now := time.Now()
	srv.Advance(now)
	eval, err := client.GetEvaluation(ctx, ref)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if eval.State() != lmeval.StateInProgress || lmeval.ExtractProgress(eval.Status) != 0 {
		t.Fatalf("after first advance: %s %d%%", eval.State(), lmeval.ExtractProgress(eval.Status))
	}

	for i := 0; i < 100/ProgressStep; i++ {
		srv.Advance(now.Add(time.Duration(i+1) * time.Minute))
	}
	eval, err = client.GetEvaluation(ctx, ref)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if eval.State() != lmeval.StateComplete {
		t.Fatalf("state = %s, want complete", eval.State())
	}
	rows, err := lmeval.ParseResults(eval.Status.Results)
	if err != nil || len(rows) != 2 {
		t.Fatalf("results rows = %d err = %v", len(rows), err)
	}
	if rows[0].Error == nil {
		t.Fatalf("row %+v has no stderr", rows[0])
	}
}

func TestDeleteDisappearsOnNextPoll(t *testing.T) {
	_, client := newTestServer(t)

	snaps := make(chan state.Snapshot[[]lmeval.Evaluation], 64)
	sub := poll.NewEvaluations(client, zap.NewNop(), poll.WithInterval(40*time.Millisecond))
	sub.OnUpdate(func(s state.Snapshot[[]lmeval.Evaluation]) {
		select {
		case snaps <- s:
		default:
		}
	})
	sub.Start("ds-project-1")
	t.Cleanup(sub.Stop)

	first := waitFor(t, snaps, func(s state.Snapshot[[]lmeval.Evaluation]) bool { return s.Loaded })
	if first.Err != nil || len(first.Data) != 2 {
		t.Fatalf("first snapshot = %d items, err %v", len(first.Data), first.Err)
	}

	victim := first.Data[0].Ref()
	if err := client.DeleteEvaluation(context.Background(), victim); err != nil {
		t.Fatalf("DeleteEvaluation: %v", err)
	}

	next := waitFor(t, snaps, func(s state.Snapshot[[]lmeval.Evaluation]) bool { return len(s.Data) != 2 })
	if len(next.Data) != 1 {
		t.Fatalf("next snapshot = %d items, want 1", len(next.Data))
	}
	if next.Data[0].Ref() == victim {
		t.Fatalf("deleted evaluation %s still present", victim)
	}
}

func waitFor[T any](t *testing.T, ch <-chan state.Snapshot[T], ok func(state.Snapshot[T]) bool) state.Snapshot[T] {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-ch:
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}
