package domain

import (
	"context"
	"time"
)

const ContextProfileKey = "performanceProfile"

func NewPerformanceProfile() *PerformanceProfile {
	return &PerformanceProfile{
		StartTime: time.Now(),
	}
}

type PerformanceProfileEvent struct {
	Name      string    `json:"name"`
	ElapsedMs int64     `json:"elapsedMs"`
	Time      time.Time `json:"time"`
}

type PerformanceProfile struct {
	StartTime time.Time                 `json:"-"`
	Events    []PerformanceProfileEvent `json:"events"`
	TotalMs   int64                     `json:"totalMs"`
}

// GetPerformanceProfile returns nil when the ctx was
// not set up with a profile
func GetPerformanceProfile(ctx context.Context) *PerformanceProfile {
	p, _ := ctx.Value(ContextProfileKey).(*PerformanceProfile)
	return p
}

func (p *PerformanceProfile) End() {
	if p == nil {
		return
	}
	p.TotalMs = time.Since(p.StartTime).Milliseconds()
}

func (p *PerformanceProfile) Add(name string) {
	if p == nil {
		return
	}
	lastTime := p.StartTime
	if len(p.Events) > 0 {
		lastTime = p.Events[len(p.Events)-1].Time
	}
	now := time.Now()
	p.Events = append(p.Events, PerformanceProfileEvent{
		Name:      name,
		ElapsedMs: now.Sub(lastTime).Milliseconds(),
		Time:      now,
	})
}
