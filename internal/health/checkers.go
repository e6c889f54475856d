// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"

	"github.com/ManuGH/hlsgate/internal/resilience"
)

// PingFunc is satisfied by the source stores' Ping method.
type PingFunc func(ctx context.Context) error

// PingChecker reports unhealthy when ping fails.
type PingChecker struct {
	name string
	ping PingFunc
}

// NewPingChecker wraps a ping function, typically a store's Ping.
func NewPingChecker(name string, ping PingFunc) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// BreakerChecker degrades readiness while a circuit breaker is not closed.
// An open breaker only affects new playbacks, so it never fails readiness.
type BreakerChecker struct {
	name  string
	state func() resilience.State
}

// NewBreakerChecker reports the state returned by state.
func NewBreakerChecker(name string, state func() resilience.State) *BreakerChecker {
	return &BreakerChecker{name: name, state: state}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	st := c.state()
	if st == resilience.StateClosed {
		return CheckResult{Status: StatusHealthy, Message: string(st)}
	}
	return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("circuit %s", st)}
}

// GaugeChecker reports a count as informational output; it is always
// healthy.
type GaugeChecker struct {
	name  string
	label string
	value func() int
}

// NewGaugeChecker reports value() as "<n> <label>".
func NewGaugeChecker(name, label string, value func() int) *GaugeChecker {
	return &GaugeChecker{name: name, label: label, value: value}
}

func (c *GaugeChecker) Name() string { return c.name }

func (c *GaugeChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d %s", c.value(), c.label)}
}
