// Package observe provides observability primitives for policy evaluation.
//
// It is a pure instrumentation library: no enforcement, no transport, no
// I/O beyond exporter setup. The pipeline wires a tracer, metrics, and a
// structured logger from here around every evaluated call.
package observe
