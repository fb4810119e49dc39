// Package form holds the evaluation creation form model and its validators.
package form

import (
	"regexp"
	"strings"

	"github.com/five82/evalwatch/internal/lmeval"
)

// ModelArgument describes the model endpoint being evaluated.
type ModelArgument struct {
	Name             string
	URL              string
	TokenizedRequest string
	Tokenizer        string
}

// Data is the user-editable part of the creation form.
type Data struct {
	EvaluationName    string
	DeployedModelName string
	ModelType         string
	Model             ModelArgument
	Tasks             []string
	AllowRemoteCode   bool
	AllowOnline       bool
	BatchSize         string
}

// NewData returns an empty form with the same defaults the server expects.
func NewData() Data {
	return Data{Model: ModelArgument{TokenizedRequest: "False"}}
}

// ModelType is a selectable model interaction style.
type ModelType struct {
	Key      string
	Label    string
	Endpoint string
}

// ModelTypes lists the supported interaction styles.
var ModelTypes = []ModelType{
	{Key: "local-completions", Label: "Local model with completions", Endpoint: "/v1/completions"},
	{Key: "local-chat-completions", Label: "Local model with chat completions", Endpoint: "/v1/chat/completions"},
}

// FindModelType returns the option for key.
func FindModelType(key string) (ModelType, bool) {
	for _, mt := range ModelTypes {
		if mt.Key == key {
			return mt, true
		}
	}
	return ModelType{}, false
}

var completionsSuffix = regexp.MustCompile(`/v1/(chat/)?completions`)

// IsSubmittable reports whether data and name are complete enough to create
// an evaluation.
func IsSubmittable(data Data, name NameField) bool {
	return len(data.Tasks) > 0 &&
		data.Model.Name != "" &&
		data.Model.URL != "" &&
		data.EvaluationName != "" &&
		data.ModelType != "" &&
		data.Model.Tokenizer != "" &&
		name.Valid()
}

// Missing lists the labels of required inputs that are still empty.
func Missing(data Data, name NameField) []string {
	var out []string
	if strings.TrimSpace(data.EvaluationName) == "" {
		out = append(out, "evaluation name")
	}
	if data.Model.Name == "" {
		out = append(out, "model")
	}
	if data.ModelType == "" {
		out = append(out, "model type")
	}
	if data.Model.URL == "" {
		out = append(out, "model url")
	}
	if data.Model.Tokenizer == "" {
		out = append(out, "tokenizer")
	}
	if len(data.Tasks) == 0 {
		out = append(out, "tasks")
	}
	if problem := name.Problem(); problem != "" && data.EvaluationName != "" {
		out = append(out, problem)
	}
	return out
}

// ConvertModelArgs expands a model argument into resource model args.
func ConvertModelArgs(m ModelArgument) []lmeval.ModelArg {
	return []lmeval.ModelArg{
		{Name: "model", Value: m.Name},
		{Name: "base_url", Value: m.URL},
		{Name: "num_concurrent", Value: "1"},
		{Name: "max_retries", Value: "3"},
		{Name: "tokenized_requests", Value: m.TokenizedRequest},
		{Name: "tokenizer", Value: m.Tokenizer},
	}
}

// SelectModel applies a deployed model choice. The model URL becomes the
// option's service plus the endpoint of the current model type.
func SelectModel(data Data, value string, options []lmeval.ModelOption) Data {
	data.DeployedModelName = value
	var picked *lmeval.ModelOption
	for i := range options {
		if options[i].Value == value {
			picked = &options[i]
			break
		}
	}
	if picked == nil {
		return data
	}
	url := picked.Service
	if data.ModelType != "" && url != "" {
		if mt, ok := FindModelType(data.ModelType); ok {
			url += mt.Endpoint
		}
	}
	data.Model.Name = picked.DisplayName
	data.Model.URL = url
	return data
}

// SelectModelType switches the interaction style and rewrites the URL endpoint.
func SelectModelType(data Data, key string) Data {
	data.ModelType = key
	if data.Model.URL == "" {
		return data
	}
	base := completionsSuffix.ReplaceAllString(data.Model.URL, "")
	endpoint := ""
	if mt, ok := FindModelType(key); ok {
		endpoint = mt.Endpoint
	}
	data.Model.URL = base + endpoint
	return data
}

// BuildCreateRequest assembles the POST body for a submittable form.
func BuildCreateRequest(data Data, name NameField) lmeval.CreateRequest {
	return lmeval.CreateRequest{
		EvaluationName: strings.TrimSpace(data.EvaluationName),
		K8sName:        name.Value,
		ModelType:      data.ModelType,
		Model: lmeval.ModelConfig{
			Name:             data.Model.Name,
			URL:              data.Model.URL,
			TokenizedRequest: data.Model.TokenizedRequest,
			Tokenizer:        data.Model.Tokenizer,
		},
		Tasks:           append([]string(nil), data.Tasks...),
		AllowRemoteCode: data.AllowRemoteCode,
		AllowOnline:     data.AllowOnline,
		BatchSize:       data.BatchSize,
	}
}

// ParseTasks splits a comma or whitespace separated task list.
func ParseTasks(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	var out []string
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
