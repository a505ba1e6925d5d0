// Package telemetry provides OpenTelemetry metrics and tracing for the signal gateway.
package telemetry

import "github.com/pitabwire/frame/telemetry"

// Connection metrics track messaging connection lifecycle.
//
//nolint:gochecknoglobals // OpenTelemetry metrics must be global for instrumentation
var (
	ConnectionsOpenedCounter = telemetry.DimensionlessMeasure(
		"",
		"signal.connections.opened",
		"Total messaging connections opened",
	)

	ConnectionsReplacedCounter = telemetry.DimensionlessMeasure(
		"",
		"signal.connections.replaced",
		"Total connections torn down because a newer one took their slot",
	)

	ConnectionsClosedCounter = telemetry.DimensionlessMeasure(
		"",
		"signal.connections.closed",
		"Total messaging connections closed",
	)
)

// Event metrics track engine events flowing through the gateway.
//
//nolint:gochecknoglobals // OpenTelemetry metrics must be global for instrumentation
var (
	EventsReceivedCounter = telemetry.DimensionlessMeasure(
		"",
		"signal.events.received",
		"Total engine events received from subscriptions",
	)

	EventsDiscardedCounter = telemetry.DimensionlessMeasure(
		"",
		"signal.events.discarded",
		"Total events acknowledged without a webhook delivery",
	)
)

// Delivery metrics track the webhook forwarding pipeline.
//
//nolint:gochecknoglobals // OpenTelemetry metrics must be global for instrumentation
var (
	DeliveriesSucceededCounter = telemetry.DimensionlessMeasure(
		"",
		"signal.deliveries.succeeded",
		"Total webhook deliveries accepted by the endpoint",
	)

	DeliveriesFailedCounter = telemetry.DimensionlessMeasure(
		"",
		"signal.deliveries.failed",
		"Total webhook deliveries that exhausted their retry budget",
	)

	DeliveriesRetriedCounter = telemetry.DimensionlessMeasure(
		"",
		"signal.deliveries.retried",
		"Total webhook delivery attempts that failed and were retried",
	)

	DeliveriesSuspendedCounter = telemetry.DimensionlessMeasure(
		"",
		"signal.deliveries.suspended",
		"Total deliveries rejected by an open endpoint breaker",
	)

	DeliveryLatencyHistogram = telemetry.LatencyMeasure(
		"signal.delivery",
	)
)

// MessagesSentCounter tracks outgoing messages pushed through connections.
//
//nolint:gochecknoglobals // OpenTelemetry metrics must be global for instrumentation
var MessagesSentCounter = telemetry.DimensionlessMeasure(
	"",
	"signal.messages.sent",
	"Total outgoing messages sent",
)
