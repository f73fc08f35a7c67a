package metrics

import (
	"runtime"
)

// CollectRuntime samples memory, goroutine and GC statistics into the
// system gauges of the global manager.
func CollectRuntime() {
	Get().CollectRuntime()
}

// CollectRuntime samples runtime statistics into the system gauges.
func (m *Manager) CollectRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	var lastPauseMs float64
	if ms.NumGC > 0 {
		lastPauseMs = float64(ms.PauseNs[(ms.NumGC+255)%256]) / 1e6
	}
	m.UpdateSystem(ms.Alloc, runtime.NumGoroutine(), lastPauseMs)
}
