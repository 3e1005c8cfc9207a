package alerts

import (
	"testing"
	"time"
)

func TestEvaluateThresholds(t *testing.T) {
	tests := []struct {
		name         string
		result       HealthCheckResult
		wantSeverity Severity
		wantNil      bool
	}{
		{
			name:    "healthy probe yields nothing",
			result:  HealthCheckResult{Service: "crm", Status: StatusUp, ResponseTime: 100 * time.Millisecond},
			wantNil: true,
		},
		{
			name:         "down is critical",
			result:       HealthCheckResult{Service: "db", Status: StatusDown},
			wantSeverity: SeverityCritical,
		},
		{
			name:         "degraded is warning",
			result:       HealthCheckResult{Service: "redis", Status: StatusDegraded},
			wantSeverity: SeverityWarning,
		},
		{
			name:         "critical error rate beats latency",
			result:       HealthCheckResult{Service: "crm", Status: StatusUp, ErrorRate: 0.5, ResponseTime: 3 * time.Second},
			wantSeverity: SeverityCritical,
		},
		{
			name:         "slow response is warning",
			result:       HealthCheckResult{Service: "crm", Status: StatusUp, ResponseTime: 3 * time.Second},
			wantSeverity: SeverityWarning,
		},
		{
			name:         "critically slow response",
			result:       HealthCheckResult{Service: "crm", Status: StatusUp, ResponseTime: 15 * time.Second},
			wantSeverity: SeverityCritical,
		},
		{
			name:         "warning error rate",
			result:       HealthCheckResult{Service: "crm", Status: StatusUp, ErrorRate: 0.1},
			wantSeverity: SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := Evaluate(tt.result)
			if tt.wantNil {
				if alert != nil {
					t.Fatalf("expected nil alert, got %+v", alert)
				}
				return
			}
			if alert == nil {
				t.Fatal("expected an alert")
			}
			if alert.Severity != tt.wantSeverity {
				t.Fatalf("severity = %s, want %s", alert.Severity, tt.wantSeverity)
			}
			if alert.Service != tt.result.Service {
				t.Fatalf("service = %s", alert.Service)
			}
		})
	}
}
