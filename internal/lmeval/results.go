package lmeval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ResultRow is one metric from an lm-eval-harness results document.
type ResultRow struct {
	Task   string
	Metric string
	Value  float64
	Error  *float64
}

// ParseResults decodes the serialized results string stored on a status.
// Empty input yields no rows and no error.
func ParseResults(raw string) ([]ResultRow, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var doc struct {
		Results map[string]map[string]json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var rows []ResultRow
	for task, metrics := range doc.Results {
		for key, value := range metrics {
			if key == "alias" {
				continue
			}
			metric, filter, _ := strings.Cut(key, ",")
			if strings.HasSuffix(metric, "_stderr") {
				continue
			}
			num, ok := number(value)
			if !ok {
				continue
			}
			row := ResultRow{Task: task, Metric: metric, Value: num}
			stderrKey := metric + "_stderr"
			if filter != "" {
				stderrKey += "," + filter
			}
			if raw, found := metrics[stderrKey]; found {
				if se, ok := number(raw); ok {
					row.Error = &se
				}
			}
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Task != rows[j].Task {
			return rows[i].Task < rows[j].Task
		}
		return rows[i].Metric < rows[j].Metric
	})
	return rows, nil
}

// PrettyResults re-indents a results document for download.
func PrettyResults(raw string) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return "", fmt.Errorf("format results: %w", err)
	}
	return buf.String(), nil
}

func number(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}
