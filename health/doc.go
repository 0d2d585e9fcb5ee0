// Package health exposes saturation-aware health checks for pools and
// bulkheads. An Aggregator folds individual Checker results into a single
// report whose overall status is the worst component status: exhausted
// pools and saturated bulkheads read as degraded, closed pools as
// unhealthy.
package health
