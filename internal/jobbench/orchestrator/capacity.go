package orchestrator

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	connectionMemoryMB  = 10
	reservedConnections = 10
)

type Capacity struct {
	// Connections the worker fleet may hold at once.
	Required       int
	MaxConnections int
	// Connections the container's memory can sustain.
	Safe int
}

func EstimateCapacity(workers, concurrency, maxConnections int, memoryMB int64) Capacity {
	return Capacity{
		Required:       workers * concurrency,
		MaxConnections: maxConnections,
		Safe:           int(memoryMB/connectionMemoryMB) - reservedConnections,
	}
}

// Warnings lists mismatches between the planned load and the database's limits. None of them stop a run.
func (c Capacity) Warnings() []string {
	p := message.NewPrinter(language.English)
	var warnings []string
	if c.Required > c.MaxConnections {
		warnings = append(warnings, p.Sprintf(
			"workers need up to %d connections but max_connections is %d", c.Required, c.MaxConnections))
	}
	if c.MaxConnections > c.Safe {
		warnings = append(warnings, p.Sprintf(
			"max_connections is %d but the container's memory only supports about %d connections", c.MaxConnections, c.Safe))
	}
	return warnings
}
