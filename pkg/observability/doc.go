/*
Package observability exports store and history activity as Prometheus metrics.

Metrics is a ports.Notifier: subscribe it to the workspace bus and register it with a
prometheus.Registerer of your choice. Nothing is registered globally.
*/
package observability
