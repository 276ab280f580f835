package perf

import (
	"runtime"

	"github.com/pbnjay/memory"
)

const bytesPerMB = 1024 * 1024

// MemorySource reports memory in use in megabytes. Return 0 when the host
// does not expose memory usage.
type MemorySource func() float64

// RuntimeMemory reports the Go heap in use.
func RuntimeMemory() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / bytesPerMB
}

// SystemMemory reports system-wide memory in use (total minus free).
// It returns 0 on platforms where the totals are unavailable.
func SystemMemory() float64 {
	total := memory.TotalMemory()
	free := memory.FreeMemory()
	if total == 0 || free > total {
		return 0
	}
	return float64(total-free) / bytesPerMB
}

// NoMemory is a MemorySource for hosts without memory reporting.
func NoMemory() float64 { return 0 }
