package telemetry

import (
	"github.com/pitabwire/frame/telemetry"
)

// Service tracers for different components.
//
//nolint:gochecknoglobals // OpenTelemetry tracers must be global for instrumentation
var (
	ConnectionTracer = telemetry.NewTracer("signal.connection")
	DeliveryTracer   = telemetry.NewTracer("signal.delivery")
	MessageTracer    = telemetry.NewTracer("signal.message")
)
