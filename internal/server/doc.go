// Package server provides the HTTP monitoring API: health, session status,
// configuration, and Prometheus metrics.
package server
