// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package testutil

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// CounterValue reads a counter from the default registry by name and exact
// label set. It returns 0 when the series does not exist yet.
func CounterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	m := find(t, name, labels)
	if m == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// GaugeValue reads a gauge from the default registry, 0 when absent.
func GaugeValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	m := find(t, name, labels)
	if m == nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// HistogramCount reads a histogram's sample count, 0 when absent.
func HistogramCount(t *testing.T, name string, labels map[string]string) uint64 {
	t.Helper()
	m := find(t, name, labels)
	if m == nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func find(t *testing.T, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}
