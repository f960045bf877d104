package internal

import (
	"os"
	"runtime"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shirou/gopsutil/process"
)

// SelfStats builds a StatsProvider reporting process health (RSS, CPU, OS
// status) alongside store size and goroutine count for the inspector header.
func SelfStats(db *badger.DB) StatsProvider {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		p = nil
	}

	return func() map[string]any {
		stats := map[string]any{
			"Goroutines": runtime.NumGoroutine(),
			"Time":       time.Now().Format(time.RFC822),
		}

		lsm, vlog := db.Size()
		stats["StoreBytes"] = lsm + vlog

		if p == nil {
			return stats
		}
		if memInfo, err := p.MemoryInfo(); err == nil {
			stats["RSSMb"] = memInfo.RSS / (1024 * 1024)
		}
		if cpuPercent, err := p.CPUPercent(); err == nil {
			stats["CPUPercent"] = cpuPercent
		}
		if status, err := p.Status(); err == nil {
			stats["PidStatus"] = status
		}
		return stats
	}
}
