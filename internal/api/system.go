package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Units         UnitMetrics    `json:"units"`
	Ingest        *IngestMetrics `json:"ingest,omitempty"`
	Notify        *NotifyMetrics `json:"notify,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// UnitMetrics contains unit registry statistics.
type UnitMetrics struct {
	Total        int            `json:"total"`
	Enabled      int            `json:"enabled"`
	ByGeneration map[string]int `json:"by_generation"`
}

// IngestMetrics contains message counters from the MQTT ingest service.
type IngestMetrics struct {
	Polls     uint64 `json:"polls"`
	Acks      uint64 `json:"acks"`
	Commands  uint64 `json:"commands"`
	Malformed uint64 `json:"malformed"`
}

// NotifyMetrics contains override delivery counters.
type NotifyMetrics struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.hub != nil {
		metrics.WebSocket = WSMetrics{ConnectedClients: s.hub.ClientCount()}
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	regStats := s.registry.GetStats()
	metrics.Units = UnitMetrics{
		Total:        regStats.TotalUnits,
		Enabled:      regStats.Enabled,
		ByGeneration: make(map[string]int, len(regStats.ByGeneration)),
	}
	for gen, count := range regStats.ByGeneration {
		metrics.Units.ByGeneration[string(gen)] = count
	}

	if s.ingest != nil {
		stats := s.ingest.GetStats()
		metrics.Ingest = &IngestMetrics{
			Polls:     stats.Polls,
			Acks:      stats.Acks,
			Commands:  stats.Commands,
			Malformed: stats.Malformed,
		}
	}

	if s.notifier != nil {
		stats := s.notifier.GetStats()
		metrics.Notify = &NotifyMetrics{
			Published: stats.Published,
			Failed:    stats.Failed,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
