package mockapi

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/five82/evalwatch/internal/form"
	"github.com/five82/evalwatch/internal/lmeval"
)

// BasePath is the prefix every route is served under.
const BasePath = "/api/v1"

const defaultPVCSize = "100Mi"

//go:embed create_request.schema.json
var createSchemaJSON string

var createSchema = gojsonschema.NewStringLoader(createSchemaJSON)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdentityRequired controls whether requests without the identity header
// are rejected. Enabled by default; disable it to emulate a proxy that injects
// the header upstream.
func WithIdentityRequired(required bool) Option {
	return func(s *Server) {
		s.requireIdentity = required
	}
}

// Server is an in-memory stand-in for the evaluation REST backend.
type Server struct {
	mu              sync.RWMutex
	user            lmeval.User
	namespaces      []lmeval.Namespace
	models          []lmeval.ModelOption
	evaluations     map[string]map[string]lmeval.Evaluation
	logger          *zap.Logger
	requireIdentity bool
	router          *mux.Router
}

// New builds a server seeded with f.
func New(f Fixtures, opts ...Option) *Server {
	s := &Server{
		user:            f.User,
		namespaces:      append([]lmeval.Namespace(nil), f.Namespaces...),
		models:          append([]lmeval.ModelOption(nil), f.Models...),
		evaluations:     make(map[string]map[string]lmeval.Evaluation),
		logger:          zap.NewNop(),
		requireIdentity: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, eval := range f.Evaluations {
		s.put(eval)
	}
	s.router = s.routes()
	return s
}

// NewDefault builds a server seeded with the embedded fixtures.
func NewDefault(opts ...Option) (*Server, error) {
	f, err := DefaultFixtures()
	if err != nil {
		return nil, err
	}
	return New(f, opts...), nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	api := r.PathPrefix(BasePath).Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.identityMiddleware)
	authed.HandleFunc("/namespaces", s.handleNamespaces).Methods(http.MethodGet)
	authed.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	authed.HandleFunc("/user", s.handleUser).Methods(http.MethodGet)
	authed.HandleFunc("/evaluations", s.handleList).Methods(http.MethodGet)
	authed.HandleFunc("/evaluations", s.handleCreate).Methods(http.MethodPost)
	authed.HandleFunc("/evaluations/{name}", s.handleGet).Methods(http.MethodGet)
	authed.HandleFunc("/evaluations/{name}", s.handleUpdate).Methods(http.MethodPut)
	authed.HandleFunc("/evaluations/{name}", s.handleDelete).Methods(http.MethodDelete)
	return r
}

func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.requireIdentity && strings.TrimSpace(r.Header.Get(lmeval.IdentityHeader)) == "" {
			writeError(w, http.StatusUnauthorized, "missing "+lmeval.IdentityHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, lmeval.Health{Status: "healthy"})
}

func (s *Server) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := append([]lmeval.Namespace{}, s.namespaces...)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, lmeval.Envelope[[]lmeval.Namespace]{Data: out})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	namespace := strings.TrimSpace(r.URL.Query().Get("namespace"))
	s.mu.RLock()
	out := make([]lmeval.ModelOption, 0, len(s.models))
	for _, m := range s.models {
		if namespace == "" || m.Namespace == namespace {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, lmeval.Envelope[[]lmeval.ModelOption]{Data: out})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	user := s.user
	s.mu.RUnlock()
	if id := strings.TrimSpace(r.Header.Get(lmeval.IdentityHeader)); id != "" {
		user.UserID = id
	}
	writeJSON(w, http.StatusOK, lmeval.Envelope[lmeval.User]{Data: user})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	namespace := strings.TrimSpace(r.URL.Query().Get("namespace"))
	list := lmeval.EvaluationList{
		TypeMeta: metav1.TypeMeta{APIVersion: lmeval.APIVersion, Kind: lmeval.Kind + "List"},
		Items:    s.list(namespace),
	}
	writeJSON(w, http.StatusOK, lmeval.Envelope[lmeval.EvaluationList]{Data: list})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromRequest(w, r)
	if !ok {
		return
	}
	eval, found := s.get(ref)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("evaluation %s not found", ref))
		return
	}
	writeJSON(w, http.StatusOK, lmeval.Envelope[lmeval.Evaluation]{Data: eval})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	namespace := strings.TrimSpace(r.URL.Query().Get("namespace"))
	if namespace == "" {
		writeError(w, http.StatusBadRequest, "namespace parameter is required")
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if problems, err := validateCreate(raw); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, strings.Join(problems, "; "))
		return
	}
	// Re-encode the validated document into the typed request.
	var req lmeval.CreateRequest
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	eval := BuildEvaluation(namespace, req, time.Now())
	if _, exists := s.get(eval.Ref()); exists {
		writeError(w, http.StatusConflict, fmt.Sprintf("evaluation %s already exists", eval.Ref()))
		return
	}
	s.put(eval)
	s.logger.Info("created evaluation",
		zap.String("namespace", namespace),
		zap.String("name", eval.Name),
		zap.String("user", r.Header.Get(lmeval.IdentityHeader)))
	writeJSON(w, http.StatusCreated, lmeval.Envelope[lmeval.Evaluation]{Data: eval})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromRequest(w, r)
	if !ok {
		return
	}
	var eval lmeval.Evaluation
	if err := json.NewDecoder(r.Body).Decode(&eval); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if eval.Name == "" {
		eval.Name = ref.Name
	}
	if eval.Namespace == "" {
		eval.Namespace = ref.Namespace
	}
	if eval.Ref() != ref {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("body names %s, path names %s", eval.Ref(), ref))
		return
	}

	s.mu.Lock()
	current, found := s.evaluations[ref.Namespace][ref.Name]
	if found {
		eval.UID = current.UID
		eval.CreationTimestamp = current.CreationTimestamp
		eval.ResourceVersion = bumpVersion(current.ResourceVersion)
		s.evaluations[ref.Namespace][ref.Name] = eval
	}
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("evaluation %s not found", ref))
		return
	}
	writeJSON(w, http.StatusOK, lmeval.Envelope[lmeval.Evaluation]{Data: eval})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromRequest(w, r)
	if !ok {
		return
	}
	if !s.remove(ref) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("evaluation %s not found", ref))
		return
	}
	s.logger.Info("deleted evaluation",
		zap.String("namespace", ref.Namespace),
		zap.String("name", ref.Name))
	w.WriteHeader(http.StatusNoContent)
}

// Evaluations returns a copy of the stored evaluations in namespace, or in
// every namespace when namespace is blank.
func (s *Server) Evaluations(namespace string) []lmeval.Evaluation {
	return s.list(namespace)
}

func (s *Server) list(namespace string) []lmeval.Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []lmeval.Evaluation{}
	for ns, items := range s.evaluations {
		if namespace != "" && ns != namespace {
			continue
		}
		for _, eval := range items {
			out = append(out, eval)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Server) get(ref lmeval.Ref) (lmeval.Evaluation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eval, ok := s.evaluations[ref.Namespace][ref.Name]
	return eval, ok
}

func (s *Server) put(eval lmeval.Evaluation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.evaluations[eval.Namespace]
	if items == nil {
		items = make(map[string]lmeval.Evaluation)
		s.evaluations[eval.Namespace] = items
	}
	if eval.ResourceVersion == "" {
		eval.ResourceVersion = "1"
	}
	items[eval.Name] = eval
}

func (s *Server) remove(ref lmeval.Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.evaluations[ref.Namespace]
	if _, ok := items[ref.Name]; !ok {
		return false
	}
	delete(items, ref.Name)
	return true
}

// BuildEvaluation converts a create request into the stored resource.
func BuildEvaluation(namespace string, req lmeval.CreateRequest, now time.Time) lmeval.Evaluation {
	name := strings.TrimSpace(req.K8sName)
	if name == "" {
		name = form.TranslateDisplayName(req.EvaluationName, form.Criteria{})
	}
	return lmeval.Evaluation{
		TypeMeta: metav1.TypeMeta{APIVersion: lmeval.APIVersion, Kind: lmeval.Kind},
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         namespace,
			UID:               newUID(),
			CreationTimestamp: metav1.NewTime(now),
			Annotations:       map[string]string{lmeval.DisplayNameAnnotation: req.EvaluationName},
		},
		Spec: lmeval.Spec{
			AllowCodeExecution: req.AllowRemoteCode,
			AllowOnline:        req.AllowOnline,
			BatchSize:          req.BatchSize,
			LogSamples:         true,
			Model:              SupportedModelType(req.ModelType),
			ModelArgs:          modelArgs(req.Model),
			TaskList:           lmeval.TaskList{TaskNames: append([]string(nil), req.Tasks...)},
			Outputs:            &lmeval.Outputs{PVCManaged: &lmeval.PVCManaged{Size: defaultPVCSize}},
		},
		Status: &lmeval.Status{
			State:   "Scheduled",
			Message: "Evaluation created successfully",
		},
	}
}

// SupportedModelType maps a requested model type onto one the operator runs.
func SupportedModelType(modelType string) string {
	switch t := strings.ToLower(modelType); {
	case strings.Contains(t, "chat"):
		return "local-chat-completions"
	case strings.Contains(t, "tinyllm"), strings.Contains(t, "llama"), strings.Contains(t, "mistral"):
		return "local-completions"
	case strings.Contains(t, "openai"):
		return "openai-completions"
	case strings.Contains(t, "huggingface"), strings.Contains(t, "hf"):
		return "hf"
	case strings.Contains(t, "watsonx"):
		return "watsonx_llm"
	case strings.Contains(t, "textsynth"):
		return "textsynth"
	default:
		return "local-completions"
	}
}

func modelArgs(m lmeval.ModelConfig) []lmeval.ModelArg {
	var args []lmeval.ModelArg
	if m.Name != "" {
		args = append(args, lmeval.ModelArg{Name: "model", Value: strings.Replace(m.Name, "-predictor", "", 1)})
	}
	if m.URL != "" {
		args = append(args, lmeval.ModelArg{Name: "base_url", Value: strings.Replace(m.URL, ":80", "", 1)})
	}
	if m.TokenizedRequest != "" {
		args = append(args, lmeval.ModelArg{Name: "tokenized_requests", Value: m.TokenizedRequest})
	}
	if m.Tokenizer != "" {
		args = append(args, lmeval.ModelArg{Name: "tokenizer", Value: m.Tokenizer})
	}
	return append(args,
		lmeval.ModelArg{Name: "num_concurrent", Value: "1"},
		lmeval.ModelArg{Name: "max_retries", Value: "3"},
	)
}

func validateCreate(doc any) ([]string, error) {
	result, err := gojsonschema.Validate(createSchema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate create request: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems, nil
}

func refFromRequest(w http.ResponseWriter, r *http.Request) (lmeval.Ref, bool) {
	ref := lmeval.Ref{
		Namespace: strings.TrimSpace(r.URL.Query().Get("namespace")),
		Name:      mux.Vars(r)["name"],
	}
	if ref.Namespace == "" {
		writeError(w, http.StatusBadRequest, "namespace parameter is required")
		return ref, false
	}
	if ref.Name == "" {
		writeError(w, http.StatusBadRequest, "evaluation name is required")
		return ref, false
	}
	return ref, true
}

func bumpVersion(v string) string {
	n, _ := strconv.Atoi(v)
	return strconv.Itoa(n + 1)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, lmeval.ErrorEnvelope{Error: &lmeval.ErrorBody{
		Code:    strconv.Itoa(status),
		Message: message,
	}})
}
