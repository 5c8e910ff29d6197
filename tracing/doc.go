/*
The tracing package holds the per-request trace context. Every request handled by the zipkin middleware gets its
own Slot, bound to the request's context.Context, which carries the single active b3.TraceID of that request. The
slot is set when the request enters the middleware and cleared when it leaves, on every exit path. Concurrent
requests never share a slot.

Application code reads the active trace with TraceIDFrom(r.Context()), for example to propagate it to outbound
calls with b3.InjectHTTP.

More information on golang context can be found at to go blog https://blog.golang.org/context.
*/
package tracing
