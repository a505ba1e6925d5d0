package business

import (
	"context"
	"errors"
	"time"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/data"
	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"

	"github.com/antinvestor/service-signal/apps/default/config"
	"github.com/antinvestor/service-signal/apps/default/service/models"
	"github.com/antinvestor/service-signal/apps/default/service/protocol"
	"github.com/antinvestor/service-signal/apps/default/service/repository"
	"github.com/antinvestor/service-signal/internal/resilience"
	"github.com/antinvestor/service-signal/internal/telemetry"
	"github.com/antinvestor/service-signal/internal/webhook"
)

type webhookDispatcher struct {
	service     *frame.Service
	cfg         *config.SignalConfig
	webhookRepo repository.WebhookEndpointRepository
	normalizer  *models.EventNormalizer
	breakers    *resilience.BreakerGroup
}

// NewWebhookDispatcher creates the dispatcher that forwards engine events to
// client webhook endpoints. Deliveries for unhealthy endpoints are rejected
// by the breaker group without an HTTP call.
func NewWebhookDispatcher(
	svc *frame.Service,
	cfg *config.SignalConfig,
	webhookRepo repository.WebhookEndpointRepository,
	breakers *resilience.BreakerGroup,
) Dispatcher {
	return &webhookDispatcher{
		service:     svc,
		cfg:         cfg,
		webhookRepo: webhookRepo,
		normalizer:  models.NewEventNormalizer(),
		breakers:    breakers,
	}
}

// Dispatch forwards one event. The event is acknowledged exactly once, after
// the delivery attempt has run its course, whatever the outcome; a delivery
// is never retried across process restarts.
func (wd *webhookDispatcher) Dispatch(ctx context.Context, clientID, tel string, event protocol.Event) {
	log := util.Log(ctx).WithFields(map[string]any{
		"client_id":  clientID,
		"tel":        tel,
		"event_type": event.Type(),
	})

	payload, err := wd.normalizer.Normalize(tel, event.Type(), event.Data())
	if err != nil {
		log.WithError(err).Error("failed to normalize event")
		telemetry.EventsDiscardedCounter.Add(ctx, 1)
		event.Ack()
		return
	}

	// The endpoint is resolved fresh per event so target changes take
	// effect immediately.
	endpoint, err := wd.webhookRepo.GetByClientID(ctx, clientID)
	if err != nil {
		if !data.ErrorIsNoRows(err) {
			log.WithError(err).Error("failed to load webhook endpoint")
		}
		telemetry.EventsDiscardedCounter.Add(ctx, 1)
		event.Ack()
		return
	}

	if endpoint.URI == "" {
		log.Debug("no webhook target configured, discarding event")
		telemetry.EventsDiscardedCounter.Add(ctx, 1)
		event.Ack()
		return
	}

	body, err := payload.Bytes()
	if err != nil {
		log.WithError(err).Error("failed to serialize webhook payload")
		telemetry.EventsDiscardedCounter.Add(ctx, 1)
		event.Ack()
		return
	}

	// Without a host service the delivery runs on the caller's goroutine.
	if wd.service == nil {
		_ = wd.deliverAndAck(ctx, clientID, endpoint, body, event)
		return
	}

	job := workerpool.NewJob[any](func(ctx context.Context, resultPipe workerpool.JobResultPipe[any]) error {
		deliveryErr := wd.deliverAndAck(ctx, clientID, endpoint, body, event)
		if deliveryErr != nil {
			return resultPipe.WriteError(ctx, deliveryErr)
		}
		return nil
	})

	if submitErr := workerpool.SubmitJob(ctx, wd.service.WorkManager(), job); submitErr != nil {
		log.WithError(submitErr).Error("failed to submit delivery job, delivering inline")
		_ = wd.deliverAndAck(ctx, clientID, endpoint, body, event)
	}
}

// deliverAndAck runs the delivery with its retry budget and acknowledges the
// event with the engine afterwards.
func (wd *webhookDispatcher) deliverAndAck(
	ctx context.Context,
	clientID string,
	endpoint *models.WebhookEndpoint,
	body []byte,
	event protocol.Event,
) error {
	defer event.Ack()

	log := util.Log(ctx).WithFields(map[string]any{
		"client_id":  clientID,
		"uri":        endpoint.URI,
		"event_type": event.Type(),
	})

	opts := webhook.DefaultOptions()
	opts.Secret = endpoint.Secret
	opts.Token = endpoint.Token
	opts.Algorithm = wd.cfg.WebhookSignatureAlgo
	opts.SignatureHeader = wd.cfg.WebhookSigHeader
	opts.TokenParam = wd.cfg.WebhookTokenParam
	opts.MaxRetries = wd.cfg.WebhookMaxRetries
	opts.RetryDelay = wd.cfg.WebhookRetryDelay()
	opts.OnRetry = func(err error, tries int) {
		telemetry.DeliveriesRetriedCounter.Add(ctx, 1)
		log.WithError(err).WithField("tries", tries).Debug("webhook delivery attempt failed")
	}

	start := time.Now()
	err := wd.breakers.Execute(clientID, func() error {
		return webhook.Deliver(ctx, endpoint.URI, body, opts)
	})
	telemetry.DeliveryLatencyHistogram.Record(ctx, float64(time.Since(start).Milliseconds()))

	switch {
	case errors.Is(err, resilience.ErrEndpointSuspended):
		telemetry.DeliveriesSuspendedCounter.Add(ctx, 1)
		log.Warn("webhook endpoint suspended, delivery dropped")
	case err != nil:
		telemetry.DeliveriesFailedCounter.Add(ctx, 1)
		log.WithError(err).Error("webhook delivery failed")
	default:
		telemetry.DeliveriesSucceededCounter.Add(ctx, 1)
		log.Debug("webhook delivered")
	}

	return err
}
