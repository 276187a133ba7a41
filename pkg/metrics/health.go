package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ComponentHealth is the last-known health of one subsystem.
type ComponentHealth struct {
	Healthy bool
	Message string
}

// HealthStatus is the JSON body served by /health and /ready.
type HealthStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// HealthChecker tracks the health of registered components.
type HealthChecker struct {
	components map[string]ComponentHealth
	startTime  time.Time
	version    string
}

var healthChecker = &HealthChecker{
	components: make(map[string]ComponentHealth),
	startTime:  time.Now(),
}

// SetVersion records the build version reported in health responses.
func SetVersion(v string) { healthChecker.version = v }

// RegisterComponent records the initial health of a named component.
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.components[name] = ComponentHealth{Healthy: healthy, Message: message}
}

// UpdateComponent updates a previously registered component's health.
func UpdateComponent(name string, healthy bool, message string) {
	healthChecker.components[name] = ComponentHealth{Healthy: healthy, Message: message}
}

// criticalComponents are required for GetReadiness to report "ready": the
// raft consensus layer and the PMS storage backend.
var criticalComponents = []string{"raft", "storage"}

// GetHealth reports overall health: unhealthy if any registered component
// is unhealthy.
func GetHealth() HealthStatus {
	status := "healthy"
	components := make(map[string]string, len(healthChecker.components))
	for name, c := range healthChecker.components {
		if c.Healthy {
			components[name] = "healthy"
		} else {
			status = "unhealthy"
			components[name] = fmt.Sprintf("unhealthy: %s", c.Message)
		}
	}
	return HealthStatus{
		Status:     status,
		Version:    healthChecker.version,
		Uptime:     time.Since(healthChecker.startTime).String(),
		Components: components,
	}
}

// GetReadiness reports "ready" only once every critical component is
// registered and healthy.
func GetReadiness() HealthStatus {
	for _, name := range criticalComponents {
		c, ok := healthChecker.components[name]
		if !ok {
			return HealthStatus{Status: "not_ready", Message: fmt.Sprintf("component %q not registered", name)}
		}
		if !c.Healthy {
			return HealthStatus{Status: "not_ready", Message: fmt.Sprintf("component %q unhealthy: %s", name, c.Message)}
		}
	}
	return HealthStatus{Status: "ready"}
}

// HealthHandler serves GetHealth as JSON.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	}
}

// ReadyHandler serves GetReadiness as JSON.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		w.Header().Set("Content-Type", "application/json")
		if readiness.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(readiness)
	}
}

// LivenessHandler always reports 200 once the process is up; used as the
// container/orchestrator liveness probe.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).String(),
		})
	}
}
