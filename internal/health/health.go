package health

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db    Pinger
	cache func() bool
	subs  func() int
	start time.Time
}

type HealthStatus struct {
	Status   string          `json:"status"`
	Database ComponentHealth `json:"database"`
	Cache    string          `json:"cache"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

type DetailedStatus struct {
	HealthStatus
	Uptime              string  `json:"uptime"`
	Goroutines          int     `json:"goroutines"`
	RealtimeSubscribers int     `json:"realtime_subscribers"`
	CPUPercent          float64 `json:"cpu_percent"`
	MemoryPercent       float64 `json:"memory_percent"`
	MemoryUsedBytes     uint64  `json:"memory_used_bytes"`
	DiskPercent         float64 `json:"disk_percent"`
}

// NewHealthChecker builds a checker. cache reports whether Redis answers and
// subs counts open change feed subscriptions; either may be nil.
func NewHealthChecker(db Pinger, cache func() bool, subs func() int) *HealthChecker {
	return &HealthChecker{db: db, cache: cache, subs: subs, start: time.Now()}
}

func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	dbHealth := h.checkDatabase(ctx)

	status := "healthy"
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
	}

	cacheStatus := "disabled"
	if h.cache != nil && h.cache() {
		cacheStatus = "healthy"
	}

	return HealthStatus{
		Status:   status,
		Database: dbHealth,
		Cache:    cacheStatus,
	}
}

// CheckDetailed adds process and host figures to CheckBasic.
func (h *HealthChecker) CheckDetailed(ctx context.Context) DetailedStatus {
	d := DetailedStatus{
		HealthStatus: h.CheckBasic(ctx),
		Uptime:       time.Since(h.start).Round(time.Second).String(),
		Goroutines:   runtime.NumGoroutine(),
	}
	if h.subs != nil {
		d.RealtimeSubscribers = h.subs()
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		d.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		d.MemoryPercent = vm.UsedPercent
		d.MemoryUsedBytes = vm.Used
	}
	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		d.DiskPercent = usage.UsedPercent
	}
	return d
}

func (h *HealthChecker) checkDatabase(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: responseTime,
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: responseTime,
	}
}
