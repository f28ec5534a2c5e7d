package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"casepulse/internal/dataprocessing"
	"casepulse/pkg/contracts"
)

// Health states reported by HealthService.
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusDegraded = "degraded"
	StatusAlive    = "alive"
)

// DatasetStatus exposes the state of the dataset store.
type DatasetStatus interface {
	Current() *dataprocessing.Dataset
	LastError() error
	Path() string
}

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	data      DatasetStatus
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a health service. clients may be nil when the
// websocket feed is not running.
func NewHealthService(version string, data DatasetStatus, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		data:      data,
		clients:   clients,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck is ready once a dataset is being served, including the
// empty dataset for a missing file. A failed reload with an older snapshot
// still in service reports degraded.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"data":      hs.checkDataHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}

	for _, service := range status.Services {
		switch service.Status {
		case StatusNotReady:
			status.Status = StatusNotReady
		case StatusDegraded:
			if status.Status == StatusReady {
				status.Status = StatusDegraded
			}
		}
	}

	if status.Status != StatusReady {
		hs.logger.WarnContext(ctx, "readiness check not ready",
			slog.String("status", status.Status),
			slog.String("data", status.Services["data"].Message))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      hs.version,
		"api_version":  info.APIVersion,
		"data_format":  info.DataFormat,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

// checkDataHealth checks the dataset store
func (hs *HealthService) checkDataHealth() ServiceHealth {
	if hs.data == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "dataset store not initialized"}
	}

	ds := hs.data.Current()
	lastErr := hs.data.LastError()

	switch {
	case ds == nil && lastErr != nil:
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("case file could not be loaded: %v", lastErr),
		}
	case ds == nil:
		return ServiceHealth{Status: StatusNotReady, Message: "case file not loaded yet"}
	case lastErr != nil:
		return ServiceHealth{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("serving previous snapshot of %d rows, last reload failed: %v", ds.Len(), lastErr),
		}
	case ds.Missing:
		return ServiceHealth{
			Status:  StatusReady,
			Message: fmt.Sprintf("case file %s not found, serving empty dataset", hs.data.Path()),
		}
	default:
		return ServiceHealth{
			Status:  StatusReady,
			Message: fmt.Sprintf("%d case records loaded at %s", ds.Len(), ds.LoadedAt.Format(time.RFC3339)),
		}
	}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.clients == nil {
		return ServiceHealth{Status: StatusReady, Message: "websocket feed disabled"}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("%d clients connected", hs.clients.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}
