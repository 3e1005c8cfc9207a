package classifier

import (
	"fmt"
	"strconv"
	"strings"
)

const fallbackConfidence = 0.3

var investmentKeywords = []string{"invest", "portfolio", "return", "accredited", "passive income"}
var realEstateKeywords = []string{"real estate", "property", "rental", "flip", "commercial building"}

// Fallback is the deterministic rule-based classifier used when the AI call
// fails or is unavailable. Division comes from keyword matching, priority from
// the amount band.
func Fallback(snapshot map[string]any) Classification {
	text := strings.ToLower(snapshotText(snapshot))
	amount := snapshotAmount(snapshot)

	division := "lending"
	if containsAny(text, investmentKeywords) {
		division = "investment"
	} else if containsAny(text, realEstateKeywords) {
		division = "real_estate"
	}

	priority := "cold"
	switch {
	case amount >= 250_000:
		priority = "hot"
	case amount >= 50_000:
		priority = "warm"
	}

	return Classification{
		Division:       division,
		Priority:       priority,
		EstimatedValue: amount,
		Reasoning:      fmt.Sprintf("rule-based: %s division, amount %.0f", division, amount),
		NextSteps:      fallbackNextSteps(division),
		Confidence:     fallbackConfidence,
		Source:         "fallback",
	}
}

func fallbackNextSteps(division string) []string {
	switch division {
	case "investment":
		return []string{"Schedule an investor presentation", "Verify accreditation status"}
	case "real_estate":
		return []string{"Request property details", "Order a preliminary valuation"}
	default:
		return []string{"Confirm funding amount and timeline", "Request bank statements"}
	}
}

// Snapshot keys follow the snake_case names captureSnapshot and the service
// snapshot assembler write.
func snapshotText(snapshot map[string]any) string {
	var b strings.Builder
	for _, key := range []string{"loan_type", "interest", "notes", "message", "source"} {
		if v, ok := snapshot[key].(string); ok {
			b.WriteString(v)
			b.WriteString(" ")
		}
	}
	return b.String()
}

func snapshotAmount(snapshot map[string]any) float64 {
	for _, key := range []string{"loan_amount", "investment_amount", "monetary_value"} {
		switch v := snapshot[key].(type) {
		case float64:
			if v > 0 {
				return v
			}
		case int:
			if v > 0 {
				return float64(v)
			}
		case string:
			cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
			if f, err := strconv.ParseFloat(cleaned, 64); err == nil && f > 0 {
				return f
			}
		}
	}
	return 0
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
