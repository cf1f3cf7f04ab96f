// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

// Metric is the optional optimization target of a completion request.
type Metric string

const (
	// MetricPerformance always routes to the strong model.
	MetricPerformance Metric = "performance"

	// MetricCost always routes to the weak model.
	MetricCost Metric = "cost"

	// MetricLatency routes to the tier reporting the higher simulated
	// throughput, ties going to the weak (cheaper) tier.
	MetricLatency Metric = "latency"

	// MetricAvailability does not influence the initial choice; it enables a
	// single cross-tier retry in the completion driver when the preferred
	// backend fails.
	MetricAvailability Metric = "availability"
)

// ParseMetric validates a wire-level optimization metric value. The empty
// string parses to nil (no optimization preference).
func ParseMetric(s string) (*Metric, error) {
	if s == "" {
		return nil, nil
	}
	m := Metric(s)
	switch m {
	case MetricPerformance, MetricCost, MetricLatency, MetricAvailability:
		return &m, nil
	}
	return nil, Validationf("unknown optimization_metric %q", s)
}
