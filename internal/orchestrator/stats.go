package orchestrator

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/process"
)

// Stats is a point in time report of the orchestrator and its process.
type Stats struct {
	Accounts       int     `json:"accounts"`
	Participants   int     `json:"participants"`
	Connected      int     `json:"connected"`
	Rooms          int     `json:"rooms"`
	QueuedRequests int     `json:"queued_requests"`
	OpenLobbies    int     `json:"open_lobbies"`
	Goroutines     int     `json:"goroutines"`
	RSSBytes       uint64  `json:"rss_bytes"`
	CPUPercent     float64 `json:"cpu_percent"`
}

// Stats collects the counters. Process metrics are left zero when the
// platform does not expose them.
func (o *Orchestrator) Stats() Stats {
	s := Stats{
		Accounts:       len(o.Accounts()),
		Participants:   o.directory.Len(),
		Connected:      len(o.directory.Connected()),
		Rooms:          o.registry.Len(),
		QueuedRequests: o.scheduler.Queue().Len(),
		OpenLobbies:    len(o.scheduler.Store().Lobbies()),
		Goroutines:     runtime.NumGoroutine(),
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		o.log.WithError(err).Debug("Process metrics unavailable")
		return s
	}
	if mem, err := p.MemoryInfo(); err == nil {
		s.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}
	return s
}
