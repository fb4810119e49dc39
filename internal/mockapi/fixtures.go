package mockapi

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/five82/evalwatch/internal/lmeval"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// Fixtures is the seed data a Server starts from.
type Fixtures struct {
	User        lmeval.User
	Namespaces  []lmeval.Namespace
	Models      []lmeval.ModelOption
	Evaluations []lmeval.Evaluation
}

type fixtureFile struct {
	User struct {
		UserID       string `yaml:"userID"`
		ClusterAdmin bool   `yaml:"clusterAdmin"`
	} `yaml:"user"`
	Namespaces  []string            `yaml:"namespaces"`
	Models      []fixtureModel      `yaml:"models"`
	Evaluations []fixtureEvaluation `yaml:"evaluations"`
}

type fixtureModel struct {
	Value       string `yaml:"value"`
	Label       string `yaml:"label"`
	DisplayName string `yaml:"displayName"`
	Namespace   string `yaml:"namespace"`
	Service     string `yaml:"service"`
}

type fixtureEvaluation struct {
	Name        string            `yaml:"name"`
	Namespace   string            `yaml:"namespace"`
	DisplayName string            `yaml:"displayName"`
	Model       string            `yaml:"model"`
	ModelName   string            `yaml:"modelName"`
	ModelURL    string            `yaml:"modelURL"`
	Tasks       []string          `yaml:"tasks"`
	BatchSize   string            `yaml:"batchSize"`
	AgeMinutes  int               `yaml:"ageMinutes"`
	State       string            `yaml:"state"`
	Reason      string            `yaml:"reason"`
	Message     string            `yaml:"message"`
	PodName     string            `yaml:"podName"`
	Results     string            `yaml:"results"`
	Progress    []fixtureProgress `yaml:"progress"`
}

// Field order matches lmeval.ProgressBar so the two convert directly.
type fixtureProgress struct {
	Count                 string `yaml:"count"`
	ElapsedTime           string `yaml:"elapsedTime"`
	Message               string `yaml:"message"`
	Percent               string `yaml:"percent"`
	RemainingTimeEstimate string `yaml:"remainingTimeEstimate"`
}

// DefaultFixtures decodes the embedded fixture set. Creation timestamps are
// relative to now.
func DefaultFixtures() (Fixtures, error) {
	return ParseFixtures(fixturesYAML, time.Now())
}

// ParseFixtures decodes a YAML fixture document.
func ParseFixtures(data []byte, now time.Time) (Fixtures, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}

	out := Fixtures{
		User: lmeval.User{UserID: file.User.UserID, ClusterAdmin: file.User.ClusterAdmin},
	}
	for _, ns := range file.Namespaces {
		out.Namespaces = append(out.Namespaces, lmeval.Namespace{Name: ns})
	}
	for _, m := range file.Models {
		out.Models = append(out.Models, lmeval.ModelOption(m))
	}
	for _, f := range file.Evaluations {
		if f.Name == "" || f.Namespace == "" {
			return Fixtures{}, fmt.Errorf("parse fixtures: evaluation needs name and namespace")
		}
		out.Evaluations = append(out.Evaluations, f.evaluation(now))
	}
	return out, nil
}

func (f fixtureEvaluation) evaluation(now time.Time) lmeval.Evaluation {
	created := now.Add(-time.Duration(f.AgeMinutes) * time.Minute)
	eval := lmeval.Evaluation{
		TypeMeta: metav1.TypeMeta{APIVersion: lmeval.APIVersion, Kind: lmeval.Kind},
		ObjectMeta: metav1.ObjectMeta{
			Name:              f.Name,
			Namespace:         f.Namespace,
			UID:               newUID(),
			CreationTimestamp: metav1.NewTime(created),
			Annotations:       map[string]string{lmeval.DisplayNameAnnotation: f.DisplayName},
		},
		Spec: lmeval.Spec{
			AllowOnline: true,
			BatchSize:   f.BatchSize,
			LogSamples:  true,
			Model:       f.Model,
			ModelArgs: []lmeval.ModelArg{
				{Name: "model", Value: f.ModelName},
				{Name: "base_url", Value: f.ModelURL},
			},
			TaskList: lmeval.TaskList{TaskNames: f.Tasks},
			Outputs:  &lmeval.Outputs{PVCManaged: &lmeval.PVCManaged{Size: defaultPVCSize}},
		},
	}
	if f.State == "" {
		return eval
	}
	status := &lmeval.Status{
		State:   f.State,
		Reason:  f.Reason,
		Message: f.Message,
		PodName: f.PodName,
		Results: f.Results,
	}
	scheduled := metav1.NewTime(created.Add(time.Minute))
	status.LastScheduleTime = &scheduled
	if f.State == "Complete" {
		done := metav1.NewTime(now.Add(-time.Duration(f.AgeMinutes/2) * time.Minute))
		status.CompleteTime = &done
	}
	for _, p := range f.Progress {
		status.ProgressBars = append(status.ProgressBars, lmeval.ProgressBar(p))
	}
	eval.Status = status
	return eval
}

func newUID() types.UID {
	return types.UID(uuid.NewString())
}
