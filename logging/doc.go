/*
Package logging provides structured leveled logging for the zipkin tracer and the services it instruments.
It wraps zap and exposes just the APIs needed: a global logger, request loggers carried in context.Context,
component loggers, trace loggers that add the traceId and spanId fields, and http middleware for access logs
and panic handling.
*/
package logging
