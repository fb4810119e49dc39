package lmeval

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// State is the lifecycle classification derived from a raw status.
type State string

const (
	StatePending    State = "Pending"
	StateInProgress State = "In progress"
	StateComplete   State = "Complete"
	StateFailed     State = "Failed"
)

// States lists every lifecycle state in display order.
var States = []State{StatePending, StateInProgress, StateComplete, StateFailed}

// Raw status tokens reported by the operator.
const (
	rawScheduled = "Scheduled"
	rawRunning   = "Running"
	rawComplete  = "Complete"
	reasonFailed = "Failed"
	reasonNone   = "NoReason"
)

// RequestingAPIMarker is the progress entry that tracks model requests.
const RequestingAPIMarker = "Requesting API"

var percentPattern = regexp.MustCompile(`(\d+)%`)

// ClassifyState maps a raw status to a lifecycle state. Unknown states are
// reported as pending.
func ClassifyState(status *Status) State {
	if status == nil || status.State == "" {
		return StatePending
	}
	switch status.State {
	case rawScheduled:
		return StatePending
	case rawRunning:
		return StateInProgress
	case rawComplete:
		if status.Reason == reasonFailed {
			return StateFailed
		}
		return StateComplete
	default:
		return StatePending
	}
}

// Terminal reports whether no further server-side transitions are expected.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// ParseState accepts a state label or a common alias, case-insensitively.
func ParseState(value string) (State, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pending", "scheduled":
		return StatePending, true
	case "in progress", "in-progress", "inprogress", "running":
		return StateInProgress, true
	case "complete", "completed":
		return StateComplete, true
	case "failed":
		return StateFailed, true
	}
	return "", false
}

// StatusMessage returns the human readable status line for a list row.
func StatusMessage(status *Status) string {
	if status == nil || status.State == "" {
		return "Unknown"
	}
	if status.State == rawComplete && status.Reason == reasonFailed {
		if status.Message != "" {
			return status.Message
		}
		return "Failed"
	}
	switch status.State {
	case rawScheduled:
		return "Pending"
	case rawRunning:
		return "Running"
	case rawComplete:
		if status.Reason == "" || status.Reason == reasonNone {
			return "Complete"
		}
		return status.Reason
	default:
		return status.State
	}
}

// ExtractProgress returns the "Requesting API" percentage in [0,100].
func ExtractProgress(status *Status) int {
	bar := requestingAPI(status)
	if bar == nil {
		return 0
	}
	match := percentPattern.FindStringSubmatch(bar.Percent)
	if match == nil {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 100
		}
		return 0
	}
	return min(max(n, 0), 100)
}

// IsRequestingAPI reports whether the pod has started issuing model requests.
func IsRequestingAPI(status *Status) bool {
	return requestingAPI(status) != nil
}

// RequestingAPIBar returns the marker progress entry, if any.
func RequestingAPIBar(status *Status) (ProgressBar, bool) {
	bar := requestingAPI(status)
	if bar == nil {
		return ProgressBar{}, false
	}
	return *bar, true
}

func requestingAPI(status *Status) *ProgressBar {
	if status == nil {
		return nil
	}
	for i := range status.ProgressBars {
		if status.ProgressBars[i].Message == RequestingAPIMarker {
			return &status.ProgressBars[i]
		}
	}
	return nil
}
