package domain

import "time"

// Readiness states, from best to worst.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the result of probing one dependency.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport is what /readyz renders.
type SystemHealthReport struct {
	Status      string
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}

// WorseHealth returns the more severe of two states. Unknown states rank as degraded and an
// empty state as ok.
func WorseHealth(a, b string) string {
	if healthRank(b) > healthRank(a) {
		return normalizeHealth(b)
	}
	return normalizeHealth(a)
}

func healthRank(status string) int {
	switch status {
	case "", HealthStatusOK:
		return 0
	case HealthStatusError:
		return 2
	default:
		return 1
	}
}

func normalizeHealth(status string) string {
	switch healthRank(status) {
	case 0:
		return HealthStatusOK
	case 2:
		return HealthStatusError
	default:
		return HealthStatusDegraded
	}
}
