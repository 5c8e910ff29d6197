/*
Package zipkin provides http middleware that traces requests in the Zipkin (B3) style.

For every request the middleware extracts the B3 trace context from the request headers, or originates a new
root trace, decides whether the trace is sampled when no upstream decision was propagated, and binds the TraceID
to the request context (see the tracing package). Around the wrapped handler it pushes the span to a Recorder,
names it after the request method and records the server receive and server send annotations together with the
request path.

Tracing is best effort. Every Recorder call is isolated: errors and panics are logged, counted and discarded, and
the wrapped handler is invoked exactly once whether or not the collector is reachable. Panics raised by the
wrapped handler are let through unchanged after the trace context has been cleared.

The only fatal error is an invalid configuration, returned by NewHandler as a *ConfigError:

	h, err := zipkin.NewHandler(app, map[string]interface{}{
		"service_name": "mccadmin",
		"service_port": 9410,
		"sample_rate":  0.5,
	})
	if err != nil {
		log.Fatal(err, "Invalid tracer configuration")
	}
	defer h.Close()
	http.ListenAndServe(":9410", h)
*/
package zipkin
