package utils

import (
	"fmt"
	"math"
	"runtime"
)

// MemUsage is a snapshot of the runtime memory statistics, sizes in MiB
type MemUsage struct {
	Alloc, TotalAlloc, Sys uint64
	NumGC                  uint32
}

func GetMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	// For info on each, see: https://golang.org/pkg/runtime/#MemStats
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}
	return MemUsage{
		Alloc:      bToMb(m.Alloc),
		TotalAlloc: bToMb(m.TotalAlloc),
		Sys:        bToMb(m.Sys),
		NumGC:      m.NumGC,
	}
}

func (mu MemUsage) String() string {
	return fmt.Sprintf("Alloc = %v MiB TotalAlloc = %v MiB Sys = %v MiB NumGC = %v",
		mu.Alloc, mu.TotalAlloc, mu.Sys, mu.NumGC)
}

func IsNan(A any) bool {
	switch v := A.(type) {
	case float64:
		return math.IsNaN(v)
	case []float64:
		for _, f := range v {
			if math.IsNaN(f) {
				return true
			}
		}
	case [][]float64:
		for _, row := range v {
			if IsNan(row) {
				return true
			}
		}
	}
	return false
}
