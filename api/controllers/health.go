package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/packfinderz-identity/api/responses"
	"github.com/angelmondragon/packfinderz-identity/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
	"github.com/angelmondragon/packfinderz-identity/pkg/logger"
)

const (
	readyTimeout = 2 * time.Second

	checkOK      = "ok"
	checkFailed  = "error"
	checkSkipped = "skipped"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyCheck names one backing service checked by readiness. A nil Pinger reports skipped.
type DependencyCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PackFinderz-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and answers 503 when any of them fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...DependencyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PackFinderz-Env", cfg.App.Env)

		results := make(map[string]string, len(checks))
		healthy := true
		for _, check := range checks {
			if check.Pinger == nil {
				results[check.Name] = checkSkipped
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			err := check.Pinger.Ping(ctx)
			cancel()
			if err != nil {
				healthy = false
				results[check.Name] = checkFailed
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "dependency", check.Name), "health.dependency_unavailable", err)
				}
				continue
			}
			results[check.Name] = checkOK
		}

		if !healthy {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": results})
	}
}
