package alerts

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus of one dependency probe.
type HealthStatus string

const (
	StatusUp       HealthStatus = "up"
	StatusDegraded HealthStatus = "degraded"
	StatusDown     HealthStatus = "down"
)

// HealthCheckResult is one probe observation of a dependency.
type HealthCheckResult struct {
	Service      string
	Status       HealthStatus
	ResponseTime time.Duration
	ErrorRate    float64
}

// PingProbe observes one dependency through its ping function. A failed ping
// reports the dependency down; latency is measured either way.
type PingProbe struct {
	Service string
	Ping    func(ctx context.Context) error
}

// Check runs the ping once.
func (p PingProbe) Check(ctx context.Context) HealthCheckResult {
	start := time.Now()
	err := p.Ping(ctx)
	result := HealthCheckResult{
		Service:      p.Service,
		Status:       StatusUp,
		ResponseTime: time.Since(start),
	}
	if err != nil {
		result.Status = StatusDown
	}
	return result
}

// Threshold defaults for Evaluate.
const (
	slowResponseThreshold     = 2 * time.Second
	criticalResponseThreshold = 10 * time.Second
	errorRateWarning          = 0.05
	errorRateCritical         = 0.25
)

// Evaluate derives an alert from a health observation, or nil when the
// observation is within thresholds. Status breaches dominate latency and
// error-rate breaches.
func Evaluate(result HealthCheckResult) *Alert {
	switch result.Status {
	case StatusDown:
		return &Alert{
			Service:  result.Service,
			Severity: SeverityCritical,
			Message:  "service is down",
			Details:  healthDetails(result),
		}
	case StatusDegraded:
		return &Alert{
			Service:  result.Service,
			Severity: SeverityWarning,
			Message:  "service is degraded",
			Details:  healthDetails(result),
		}
	}

	if result.ErrorRate >= errorRateCritical {
		return &Alert{
			Service:  result.Service,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("error rate above %.0f%%", errorRateCritical*100),
			Details:  healthDetails(result),
		}
	}
	if result.ResponseTime >= criticalResponseThreshold {
		return &Alert{
			Service:  result.Service,
			Severity: SeverityCritical,
			Message:  "response time critically slow",
			Details:  healthDetails(result),
		}
	}
	if result.ErrorRate >= errorRateWarning {
		return &Alert{
			Service:  result.Service,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("error rate above %.0f%%", errorRateWarning*100),
			Details:  healthDetails(result),
		}
	}
	if result.ResponseTime >= slowResponseThreshold {
		return &Alert{
			Service:  result.Service,
			Severity: SeverityWarning,
			Message:  "response time elevated",
			Details:  healthDetails(result),
		}
	}
	return nil
}

func healthDetails(result HealthCheckResult) map[string]any {
	return map[string]any{
		"status":         string(result.Status),
		"responseTimeMs": result.ResponseTime.Milliseconds(),
		"errorRate":      result.ErrorRate,
	}
}
