package classifier

import "testing"

func TestFallback_DivisionFromKeywords(t *testing.T) {
	cases := []struct {
		name     string
		snapshot map[string]any
		want     string
	}{
		{"lending default", map[string]any{"loan_type": "working capital"}, "lending"},
		{"investment keyword", map[string]any{"interest": "passive income portfolio"}, "investment"},
		{"real estate keyword", map[string]any{"notes": "wants to buy a rental property"}, "real_estate"},
		{"empty snapshot", map[string]any{}, "lending"},
	}

	for _, tc := range cases {
		got := Fallback(tc.snapshot)
		if got.Division != tc.want {
			t.Errorf("%s: division = %q, want %q", tc.name, got.Division, tc.want)
		}
		if got.Source != "fallback" {
			t.Errorf("%s: source = %q, want fallback", tc.name, got.Source)
		}
		if got.Confidence != fallbackConfidence {
			t.Errorf("%s: confidence = %v, want %v", tc.name, got.Confidence, fallbackConfidence)
		}
	}
}

func TestFallback_PriorityFromAmountBand(t *testing.T) {
	cases := []struct {
		amount any
		want   string
	}{
		{300_000.0, "hot"},
		{250_000.0, "hot"},
		{75_000.0, "warm"},
		{50_000.0, "warm"},
		{10_000.0, "cold"},
		{"$120,000", "warm"},
		{nil, "cold"},
	}

	for _, tc := range cases {
		snapshot := map[string]any{}
		if tc.amount != nil {
			snapshot["loan_amount"] = tc.amount
		}
		got := Fallback(snapshot)
		if got.Priority != tc.want {
			t.Errorf("amount %v: priority = %q, want %q", tc.amount, got.Priority, tc.want)
		}
	}
}

// Mirrors the exact keys the leads service writes into capture snapshots, so
// the heuristics cannot drift away from what they receive in production.
func TestFallback_ReadsCaptureSnapshotKeys(t *testing.T) {
	snapshot := map[string]any{
		"entity_id":    "4be0643f-1d98-573b-97cd-ca98a65347dd",
		"first_name":   "Ada",
		"last_name":    "Prescott",
		"email":        "ada@example.com",
		"phone":        "+15551230000",
		"source":       "web-form",
		"loan_type":    "equipment financing",
		"loan_amount":  300_000.0,
		"credit_score": 710,
		"message":      "need new trucks before Q4",
	}

	got := Fallback(snapshot)
	if got.Priority != "hot" {
		t.Fatalf("priority = %q, want hot for a 300k lead", got.Priority)
	}
	if got.EstimatedValue != 300_000 {
		t.Fatalf("estimated value = %v, want 300000", got.EstimatedValue)
	}
	if got.Division != "lending" {
		t.Fatalf("division = %q, want lending", got.Division)
	}
}

func TestFallback_ReadsCaptureSnapshotKeywords(t *testing.T) {
	snapshot := map[string]any{
		"source":      "referral",
		"loan_type":   "commercial building purchase",
		"loan_amount": 80_000.0,
		"message":     "looking at a rental property downtown",
	}

	got := Fallback(snapshot)
	if got.Division != "real_estate" {
		t.Fatalf("division = %q, want real_estate", got.Division)
	}
	if got.Priority != "warm" {
		t.Fatalf("priority = %q, want warm for an 80k lead", got.Priority)
	}
}

func TestFallback_EstimatedValueFromAlternateFields(t *testing.T) {
	got := Fallback(map[string]any{"investment_amount": 500_000.0, "interest": "portfolio diversification"})
	if got.EstimatedValue != 500_000 {
		t.Fatalf("estimated value = %v, want 500000", got.EstimatedValue)
	}
	if got.Division != "investment" || got.Priority != "hot" {
		t.Fatalf("unexpected classification: %+v", got)
	}
}
