/*
Package observability binds the assistant lifecycle hooks to Prometheus
metrics and to structured logs.
*/
package observability
