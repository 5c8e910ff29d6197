/*
Package metrics provides Prometheus instrumentation for the zipkin tracer: counters for handled requests and their
sampling decisions, counters for absorbed tracer failures, a request duration histogram middleware and the
middleware serving the Prometheus metrics endpoint.

Tracer failures never surface to the application, so tracer_errors_total is the place to watch for a collector
that is unreachable or misbehaving.
*/
package metrics
