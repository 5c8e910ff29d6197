/*
Package b3 implements the B3 (Zipkin) trace identifier: the TraceID data model, extraction of a TraceID from
inbound X-B3-* headers, injection into outbound headers, identifier generation and the probabilistic Sampler.

Extraction never fails. Missing or malformed identifiers degrade to a new root trace whose sampling decision is
left undetermined for the Sampler. A sampling decision received from upstream is always honored.

The X-B3-Flags value is carried through extraction and injection. Its debug bit is reported by TraceID.Debug
but does not force sampling.
*/
package b3
