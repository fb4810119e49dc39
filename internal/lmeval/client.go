package lmeval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Fetcher is the read/write surface consumed by pollers, the CLI and the UI.
// *Client implements it; tests substitute fakes.
type Fetcher interface {
	ListEvaluations(ctx context.Context, namespace string) ([]Evaluation, error)
	GetEvaluation(ctx context.Context, ref Ref) (*Evaluation, error)
	CreateEvaluation(ctx context.Context, namespace string, req CreateRequest) (*Evaluation, error)
	UpdateEvaluation(ctx context.Context, eval Evaluation) (*Evaluation, error)
	DeleteEvaluation(ctx context.Context, ref Ref) error
	ListNamespaces(ctx context.Context) ([]Namespace, error)
	ListModels(ctx context.Context, namespace string) ([]ModelOption, error)
	CurrentUser(ctx context.Context) (*User, error)
}

var _ Fetcher = (*Client)(nil)

var (
	ErrNilClient         = errors.New("client is nil")
	ErrNameRequired      = errors.New("evaluation name required")
	ErrNamespaceRequired = errors.New("namespace required")
)

// IdentityHeader carries the development identity when no proxy injects it.
const IdentityHeader = "kubeflow-userid"

const (
	DefaultBaseURL   = "http://localhost:8080/api/v1"
	defaultUserAgent = "evalwatch/0.1"
	requestTimeout   = 10 * time.Second
)

// DeploymentMode selects how the backend is reached.
type DeploymentMode string

const (
	ModeStandalone DeploymentMode = "standalone"
	ModeFederated  DeploymentMode = "federated"
	ModeKubeflow   DeploymentMode = "kubeflow"
)

// Proxied reports whether an upstream proxy injects the identity header.
func (m DeploymentMode) Proxied() bool {
	return m == ModeKubeflow
}

// ParseDeploymentMode validates a configured mode. Empty means standalone.
func ParseDeploymentMode(value string) (DeploymentMode, error) {
	switch mode := DeploymentMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "":
		return ModeStandalone, nil
	case ModeStandalone, ModeFederated, ModeKubeflow:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown deployment mode %q", value)
	}
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Mode       DeploymentMode
	Identity   string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the evaluation REST backend.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	mode      DeploymentMode
	identity  string
	userAgent string
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s %s: %s", e.Method, e.Path, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = requestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeStandalone
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:   base,
		http:      httpClient,
		mode:      mode,
		identity:  strings.TrimSpace(opts.Identity),
		userAgent: userAgent,
	}, nil
}

// BaseURL returns the normalized API base.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL.String()
}

// ListEvaluations returns every evaluation in namespace.
func (c *Client) ListEvaluations(ctx context.Context, namespace string) ([]Evaluation, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	if strings.TrimSpace(namespace) == "" {
		return nil, ErrNamespaceRequired
	}
	var payload Envelope[EvaluationList]
	if err := c.request(ctx, http.MethodGet, "evaluations", nsQuery(namespace), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data.Items, nil
}

// GetEvaluation fetches one evaluation.
func (c *Client) GetEvaluation(ctx context.Context, ref Ref) (*Evaluation, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	var payload Envelope[Evaluation]
	if err := c.request(ctx, http.MethodGet, "evaluations/"+url.PathEscape(ref.Name), nsQuery(ref.Namespace), nil, &payload); err != nil {
		return nil, err
	}
	return &payload.Data, nil
}

// CreateEvaluation submits a new evaluation run.
func (c *Client) CreateEvaluation(ctx context.Context, namespace string, req CreateRequest) (*Evaluation, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	if strings.TrimSpace(namespace) == "" {
		return nil, ErrNamespaceRequired
	}
	var payload Envelope[Evaluation]
	if err := c.request(ctx, http.MethodPost, "evaluations", nsQuery(namespace), req, &payload); err != nil {
		return nil, err
	}
	return &payload.Data, nil
}

// UpdateEvaluation replaces an evaluation with eval.
func (c *Client) UpdateEvaluation(ctx context.Context, eval Evaluation) (*Evaluation, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	ref := eval.Ref()
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	var payload Envelope[Evaluation]
	if err := c.request(ctx, http.MethodPut, "evaluations/"+url.PathEscape(ref.Name), nsQuery(ref.Namespace), eval, &payload); err != nil {
		return nil, err
	}
	return &payload.Data, nil
}

// DeleteEvaluation removes an evaluation. No body is decoded.
func (c *Client) DeleteEvaluation(ctx context.Context, ref Ref) error {
	if c == nil {
		return ErrNilClient
	}
	if err := checkRef(ref); err != nil {
		return err
	}
	return c.request(ctx, http.MethodDelete, "evaluations/"+url.PathEscape(ref.Name), nsQuery(ref.Namespace), nil, nil)
}

// ListNamespaces returns the namespaces visible to the caller.
func (c *Client) ListNamespaces(ctx context.Context) ([]Namespace, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	var payload Envelope[[]Namespace]
	if err := c.request(ctx, http.MethodGet, "namespaces", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// ListModels returns deployed models, optionally limited to one namespace.
func (c *Client) ListModels(ctx context.Context, namespace string) ([]ModelOption, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	var query url.Values
	if strings.TrimSpace(namespace) != "" {
		query = nsQuery(namespace)
	}
	var payload Envelope[[]ModelOption]
	if err := c.request(ctx, http.MethodGet, "models", query, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// CurrentUser returns the identity the backend resolved.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	var payload Envelope[User]
	if err := c.request(ctx, http.MethodGet, "user", nil, nil, &payload); err != nil {
		return nil, err
	}
	return &payload.Data, nil
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	var payload Health
	if err := c.request(ctx, http.MethodGet, "health", nil, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// EvaluationsByState lists evaluations in namespace whose lifecycle state is state.
func (c *Client) EvaluationsByState(ctx context.Context, namespace string, state State) ([]Evaluation, error) {
	items, err := c.ListEvaluations(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := make([]Evaluation, 0, len(items))
	for _, item := range items {
		if item.State() == state {
			out = append(out, item)
		}
	}
	return out, nil
}

// NamespaceAccessible reports whether namespace appears in the caller's namespace list.
func (c *Client) NamespaceAccessible(ctx context.Context, namespace string) (bool, error) {
	namespaces, err := c.ListNamespaces(ctx)
	if err != nil {
		return false, err
	}
	for _, ns := range namespaces {
		if ns.Name == namespace {
			return true, nil
		}
	}
	return false, nil
}

// IsClusterAdmin reports the admin flag; any error reads as false.
func (c *Client) IsClusterAdmin(ctx context.Context) bool {
	user, err := c.CurrentUser(ctx)
	if err != nil || user == nil {
		return false
	}
	return user.ClusterAdmin
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	reqURL := c.baseURL.JoinPath(path)
	reqURL.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if !c.mode.Proxied() && c.identity != "" {
		req.Header.Set(IdentityHeader, c.identity)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, "/"+path, resp)
	}
	if dest == nil || method == http.MethodDelete {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAPIError(method, path string, resp *http.Response) *APIError {
	apiErr := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, statusText(resp)),
	}
	var body ErrorEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil {
		if body.Error != nil && strings.TrimSpace(body.Error.Message) != "" {
			apiErr.Message = body.Error.Message
		}
	}
	return apiErr
}

// statusText prefers the reason phrase the server sent, which also covers
// codes net/http does not know.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	if text == "" {
		text = "Unknown status"
	}
	return text
}

func nsQuery(namespace string) url.Values {
	return url.Values{"namespace": []string{strings.TrimSpace(namespace)}}
}

func checkRef(ref Ref) error {
	if strings.TrimSpace(ref.Namespace) == "" {
		return ErrNamespaceRequired
	}
	if strings.TrimSpace(ref.Name) == "" {
		return ErrNameRequired
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
