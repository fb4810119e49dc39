package mockapi

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/five82/evalwatch/internal/lmeval"
)

// ProgressStep is how far a running evaluation advances per Advance call.
const ProgressStep = 25

// Advance moves every unfinished evaluation one step through its lifecycle:
// Scheduled evaluations start running, running ones gain ProgressStep percent
// and complete with generated results at 100%.
func (s *Server) Advance(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, items := range s.evaluations {
		for name, eval := range items {
			if advance(&eval, now) {
				eval.ResourceVersion = bumpVersion(eval.ResourceVersion)
				items[name] = eval
				s.logger.Debug("advanced evaluation",
					zap.String("namespace", eval.Namespace),
					zap.String("name", name),
					zap.String("state", eval.Status.State))
			}
		}
	}
}

// Simulate calls Advance every interval until ctx is done.
func (s *Server) Simulate(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Advance(now)
		}
	}
}

func advance(eval *lmeval.Evaluation, now time.Time) bool {
	if eval.Status == nil {
		eval.Status = &lmeval.Status{}
	}
	status := eval.Status
	switch status.State {
	case "Complete":
		return false
	case "Running":
		pct := lmeval.ExtractProgress(status) + ProgressStep
		if pct >= 100 {
			complete(eval, now)
			return true
		}
		status.ProgressBars = []lmeval.ProgressBar{runningBar(pct, now.Sub(eval.CreationTimestamp.Time))}
		status.Message = "Evaluation in progress"
		return true
	default:
		started := metav1.NewTime(now)
		status.State = "Running"
		status.Reason = "NoReason"
		status.Message = "Evaluation in progress"
		status.PodName = eval.Name
		status.LastScheduleTime = &started
		status.ProgressBars = []lmeval.ProgressBar{runningBar(0, 0)}
		return true
	}
}

func runningBar(pct int, elapsed time.Duration) lmeval.ProgressBar {
	return lmeval.ProgressBar{
		Count:       fmt.Sprintf("%d/100", pct),
		ElapsedTime: elapsed.Truncate(time.Second).String(),
		Message:     lmeval.RequestingAPIMarker,
		Percent:     fmt.Sprintf("%d%%", pct),
	}
}

func complete(eval *lmeval.Evaluation, now time.Time) {
	done := metav1.NewTime(now)
	eval.Status.State = "Complete"
	eval.Status.Reason = "NoReason"
	eval.Status.Message = "Evaluation completed successfully"
	eval.Status.CompleteTime = &done
	eval.Status.ProgressBars = []lmeval.ProgressBar{runningBar(100, now.Sub(eval.CreationTimestamp.Time))}
	eval.Status.Results = generatedResults(eval.Tasks())
}

// generatedResults produces stable lm-eval-harness style scores per task.
func generatedResults(tasks []string) string {
	results := make(map[string]map[string]any, len(tasks))
	for _, task := range tasks {
		h := fnv.New32a()
		_, _ = h.Write([]byte(task))
		acc := 0.5 + float64(h.Sum32()%45)/100
		results[task] = map[string]any{
			"alias":           task,
			"acc,none":        acc,
			"acc_stderr,none": 0.01,
		}
	}
	data, _ := json.Marshal(map[string]any{"results": results})
	return string(data)
}
