// Package analytics derives the dashboard payload from stored commentary rows:
// recent commentary and latency, counts bucketed over time, and the score and
// win probability series with padded chart domains.
package analytics
