// Package rules holds the static heuristics used by the analysis agents:
// partition sizing, skew detection and mitigation, and Spark configuration
// sizing. Every function is pure.
package rules
