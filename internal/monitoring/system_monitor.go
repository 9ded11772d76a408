package monitoring

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemSnapshot holds one sample of process resource usage.
type SystemSnapshot struct {
	CPUPercent float64
	HeapBytes  uint64
	RSSBytes   uint64
	Goroutines int
	Timestamp  time.Time
}

// SystemMonitor samples CPU, memory, and goroutine counts on a fixed
// interval and publishes them to the process gauges. The health endpoint
// reads the latest snapshot instead of measuring inline.
type SystemMonitor struct {
	logger zerolog.Logger
	proc   *process.Process

	mu       sync.RWMutex
	snapshot SystemSnapshot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSystemMonitor(logger zerolog.Logger) *SystemMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	// A nil process handle falls back to heap-only reporting.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("Process handle unavailable, RSS reporting disabled")
		proc = nil
	}

	return &SystemMonitor{
		logger: logger.With().Str("component", "system_monitor").Logger(),
		proc:   proc,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the sampling goroutine. Safe to call once.
func (sm *SystemMonitor) Start(interval time.Duration) {
	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sm.logger.Info().Dur("interval", interval).Msg("System monitor started")
		sm.sample()

		for {
			select {
			case <-ticker.C:
				sm.sample()
			case <-sm.ctx.Done():
				sm.logger.Debug().Msg("System monitor stopped")
				return
			}
		}
	}()
}

// sample measures once and updates both the snapshot and the gauges.
// The CPU measurement blocks for one second inside this goroutine.
func (sm *SystemMonitor) sample() {
	snap := SystemSnapshot{
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now(),
	}

	if percents, err := cpu.Percent(1*time.Second, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	snap.HeapBytes = mem.HeapAlloc

	if sm.proc != nil {
		if memInfo, err := sm.proc.MemoryInfo(); err == nil {
			snap.RSSBytes = memInfo.RSS
		}
	}

	sm.mu.Lock()
	sm.snapshot = snap
	sm.mu.Unlock()

	CPUUsagePercent.Set(snap.CPUPercent)
	MemoryHeapBytes.Set(float64(snap.HeapBytes))
	MemoryRSSBytes.Set(float64(snap.RSSBytes))
	GoroutinesActive.Set(float64(snap.Goroutines))
}

// Snapshot returns the most recent sample.
func (sm *SystemMonitor) Snapshot() SystemSnapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.snapshot
}

// Stop halts sampling and waits for the goroutine to finish.
func (sm *SystemMonitor) Stop() {
	sm.cancel()
	sm.wg.Wait()
}
