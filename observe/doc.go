// Package observe provides observability primitives for pool and bulkhead
// operations.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers wire the observer's Logger and instrument
// sets into the pool, aipool, and admission packages.
package observe
