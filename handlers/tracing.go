package handlers

import (
	tracer "github.com/dhawal-pandya/aeonis/packages/tracer-sdk/go"
)

var Tracer *tracer.Tracer

func SetTracer(t *tracer.Tracer) {
	Tracer = t
}

// InitTracerForTests wires a tracer pointed at nothing so handler tests can
// run without an exporter.
func InitTracerForTests() {
	Tracer = tracer.NewTracer("bandroom-test", "", "test", tracer.NewPIISanitizer())
}
