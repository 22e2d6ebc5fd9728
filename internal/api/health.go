package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/querylens/querylens/internal/config"
)

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthProbe checks one external component.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func handleHealth(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dependencyTimeout(deps))
	defer cancel()

	components := runProbes(ctx, deps.Probes)
	status := overallHealth(components)
	code := http.StatusOK
	if status == HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"service":    cfg.Service.Name,
		"profile":    cfg.Profile,
		"components": components,
	})
}

func runProbes(ctx context.Context, probes []HealthProbe) map[string]componentHealth {
	results := make(map[string]componentHealth, len(probes))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, probe := range probes {
		if probe.Check == nil {
			continue
		}
		wg.Add(1)
		go func(probe HealthProbe) {
			defer wg.Done()
			health := componentHealth{Status: "up"}
			if err := probe.Check(ctx); err != nil {
				health = componentHealth{Status: "down", Error: err.Error()}
			}
			mu.Lock()
			results[probe.Name] = health
			mu.Unlock()
		}(probe)
	}
	wg.Wait()
	return results
}

// overallHealth is healthy when every component is up, unhealthy when none
// is, degraded otherwise. No probes at all counts as healthy.
func overallHealth(components map[string]componentHealth) string {
	up := 0
	for _, health := range components {
		if health.Status == "up" {
			up++
		}
	}
	switch {
	case up == len(components):
		return HealthHealthy
	case up == 0:
		return HealthUnhealthy
	default:
		return HealthDegraded
	}
}
