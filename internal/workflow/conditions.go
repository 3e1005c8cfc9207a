package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Matches reports whether the definition's trigger and all of its conditions
// hold for the event.
func (d Definition) Matches(evt Event) bool {
	if !d.Enabled {
		return false
	}
	if d.Trigger.Type != evt.Type {
		return false
	}

	switch evt.Type {
	case TriggerStageChanged:
		if d.Trigger.Stage != "" && d.Trigger.Stage != evt.Stage {
			return false
		}
		if d.Trigger.From != "" && d.Trigger.From != evt.FromStage {
			return false
		}
	case TriggerTimeElapsed, TriggerDocumentsComplete:
		if d.Trigger.Stage != "" && d.Trigger.Stage != evt.Stage {
			return false
		}
		if d.Trigger.Source != "" && d.Trigger.Source != evt.Source {
			return false
		}
	case TriggerWebhookReceived:
		if d.Trigger.Source != "" && d.Trigger.Source != evt.Source {
			return false
		}
	}

	for _, cond := range d.Conditions {
		if !evalCondition(cond, evt.Snapshot) {
			return false
		}
	}
	return true
}

// Supported condition operators.
const (
	OpEquals      = "equals"
	OpContains    = "contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
)

// evalCondition evaluates one predicate against the snapshot. A missing field
// or unknown operator evaluates to false (fail-closed).
func evalCondition(cond Condition, snapshot map[string]any) bool {
	raw, ok := snapshot[cond.Field]
	if !ok {
		return false
	}

	switch cond.Operator {
	case OpEquals:
		return strings.EqualFold(stringify(raw), cond.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(stringify(raw)), strings.ToLower(cond.Value))
	case OpGreaterThan:
		left, lok := toFloat(raw)
		right, rok := toFloat(cond.Value)
		return lok && rok && left > right
	case OpLessThan:
		left, lok := toFloat(raw)
		right, rok := toFloat(cond.Value)
		return lok && rok && left < right
	default:
		return false
	}
}

var templateField = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// RenderTemplate interpolates {{field}} placeholders from the snapshot.
// Placeholders for missing fields pass through literally so a template gap
// does not silently corrupt message text.
func RenderTemplate(template string, snapshot map[string]any) string {
	return templateField.ReplaceAllStringFunc(template, func(match string) string {
		field := templateField.FindStringSubmatch(match)[1]
		if raw, ok := snapshot[field]; ok {
			return stringify(raw)
		}
		return match
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
