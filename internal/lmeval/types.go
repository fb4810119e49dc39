package lmeval

import (
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// DisplayNameAnnotation carries the user-facing evaluation name.
	DisplayNameAnnotation = "opendatahub.io/display-name"

	APIVersion = "trustyai.opendatahub.io/v1alpha1"
	Kind       = "LMEvalJob"
)

// Evaluation mirrors one LMEval custom resource.
type Evaluation struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`

	Spec   Spec    `json:"spec"`
	Status *Status `json:"status,omitempty"`
}

// Spec is fixed at creation time and never modified by evalwatch.
type Spec struct {
	AllowCodeExecution bool       `json:"allowCodeExecution,omitempty"`
	AllowOnline        bool       `json:"allowOnline,omitempty"`
	BatchSize          string     `json:"batchSize,omitempty"`
	LogSamples         bool       `json:"logSamples,omitempty"`
	Model              string     `json:"model"`
	ModelArgs          []ModelArg `json:"modelArgs,omitempty"`
	Timeout            int        `json:"timeout,omitempty"`
	TaskList           TaskList   `json:"taskList"`
	Outputs            *Outputs   `json:"outputs,omitempty"`
}

// ModelArg is a single name/value argument passed to the evaluated model.
type ModelArg struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TaskList names the benchmark tasks to run.
type TaskList struct {
	TaskNames []string `json:"taskNames"`
}

// Outputs configures where results are stored.
type Outputs struct {
	PVCManaged *PVCManaged `json:"pvcManaged,omitempty"`
}

// PVCManaged requests an operator-managed volume of the given size.
type PVCManaged struct {
	Size string `json:"size"`
}

// Status is owned by the server and treated as a possibly stale snapshot.
type Status struct {
	CompleteTime     *metav1.Time  `json:"completeTime,omitempty"`
	LastScheduleTime *metav1.Time  `json:"lastScheduleTime,omitempty"`
	Message          string        `json:"message,omitempty"`
	PodName          string        `json:"podName,omitempty"`
	Reason           string        `json:"reason,omitempty"`
	Results          string        `json:"results,omitempty"`
	State            string        `json:"state,omitempty"`
	ProgressBars     []ProgressBar `json:"progressBars,omitempty"`
}

// ProgressBar is one free-form progress entry reported by the evaluation pod.
type ProgressBar struct {
	Count                 string `json:"count"`
	ElapsedTime           string `json:"elapsedTime"`
	Message               string `json:"message"`
	Percent               string `json:"percent"`
	RemainingTimeEstimate string `json:"remainingTimeEstimate"`
}

// EvaluationList mirrors the collection payload.
type EvaluationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata"`

	Items []Evaluation `json:"items"`
}

// Ref identifies a single evaluation.
type Ref struct {
	Namespace string
	Name      string
}

// Empty reports whether either half of the reference is missing.
func (r Ref) Empty() bool {
	return strings.TrimSpace(r.Namespace) == "" || strings.TrimSpace(r.Name) == ""
}

func (r Ref) String() string {
	return r.Namespace + "/" + r.Name
}

// Ref returns the reference for e.
func (e Evaluation) Ref() Ref {
	return Ref{Namespace: e.Namespace, Name: e.Name}
}

// DisplayName returns the display annotation, falling back to the resource name.
func (e Evaluation) DisplayName() string {
	if name := strings.TrimSpace(e.Annotations[DisplayNameAnnotation]); name != "" {
		return name
	}
	return e.Name
}

// State classifies the evaluation's current status.
func (e Evaluation) State() State {
	return ClassifyState(e.Status)
}

// Tasks returns the configured task names.
func (e Evaluation) Tasks() []string {
	return e.Spec.TaskList.TaskNames
}

// CreateRequest is the body accepted by POST /evaluations.
type CreateRequest struct {
	EvaluationName  string      `json:"evaluationName"`
	K8sName         string      `json:"k8sName"`
	ModelType       string      `json:"modelType"`
	Model           ModelConfig `json:"model"`
	Tasks           []string    `json:"tasks"`
	AllowRemoteCode bool        `json:"allowRemoteCode"`
	AllowOnline     bool        `json:"allowOnline"`
	BatchSize       string      `json:"batchSize,omitempty"`
}

// ModelConfig describes the model endpoint under evaluation.
type ModelConfig struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	TokenizedRequest string `json:"tokenizedRequest"`
	Tokenizer        string `json:"tokenizer"`
}

// ModelOption is a deployed model that can be evaluated.
type ModelOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	DisplayName string `json:"displayName"`
	Namespace   string `json:"namespace"`
	Service     string `json:"service"`
}

// Namespace is a project evaluations are grouped under.
type Namespace struct {
	Name string `json:"name"`
}

// User describes the identity the backend resolved for this client.
type User struct {
	UserID       string `json:"userID"`
	ClusterAdmin bool   `json:"clusterAdmin"`
}

// Health mirrors GET /health.
type Health struct {
	Status string `json:"status"`
}

// Envelope wraps every data-bearing API response.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// ErrorEnvelope is the structured error body returned on non-2xx responses.
type ErrorEnvelope struct {
	Error *ErrorBody `json:"error"`
}

// ErrorBody is the payload inside ErrorEnvelope.
type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
