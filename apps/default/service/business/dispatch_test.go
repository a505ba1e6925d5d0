package business_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/antinvestor/service-signal/apps/default/config"
	"github.com/antinvestor/service-signal/apps/default/service/business"
	"github.com/antinvestor/service-signal/apps/default/service/models"
	"github.com/antinvestor/service-signal/apps/default/service/repository"
	"github.com/antinvestor/service-signal/internal/resilience"
	"github.com/antinvestor/service-signal/internal/webhook"
)

type fakeWebhookRepo struct {
	repository.WebhookEndpointRepository

	mu       sync.Mutex
	endpoint *models.WebhookEndpoint
	err      error
}

func (f *fakeWebhookRepo) GetByClientID(_ context.Context, _ string) (*models.WebhookEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.endpoint, nil
}

func (f *fakeWebhookRepo) setEndpoint(endpoint *models.WebhookEndpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoint = endpoint
}

func dispatchConfig() *config.SignalConfig {
	return &config.SignalConfig{
		WebhookMaxRetries:      0,
		WebhookRetryDelaySec:   1,
		WebhookSignatureAlgo:   "sha512",
		WebhookSigHeader:       "X-Hook-Signature",
		WebhookTokenParam:      "token",
		BreakerMaxFailures:     10,
		BreakerResetTimeoutSec: 60,
		ClientIDHeader:         "X-Client-Id",
	}
}

type capturedRequest struct {
	body      []byte
	signature string
	tokenArg  string
}

// captureServer records every delivery it receives and answers 200.
func captureServer(t *testing.T) (*httptest.Server, *[]capturedRequest) {
	t.Helper()

	var mu sync.Mutex
	var requests []capturedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		mu.Lock()
		requests = append(requests, capturedRequest{
			body:      body,
			signature: r.Header.Get("X-Hook-Signature"),
			tokenArg:  r.URL.Query().Get("token"),
		})
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

func messageEvent() *fakeEvent {
	return &fakeEvent{
		eventType: models.EventTypeMessage,
		data: &models.MessageData{
			Source:    "+15559998888",
			Timestamp: int64(1700000000000),
			Body:      "hello",
		},
	}
}

func TestDispatcher_DeliversAndAcks(t *testing.T) {
	ctx := context.Background()
	server, requests := captureServer(t)

	repo := &fakeWebhookRepo{endpoint: &models.WebhookEndpoint{
		ClientID: "client-a",
		URI:      server.URL,
		Token:    "tkn-1",
		Secret:   "s3cret",
	}}

	dispatcher := business.NewWebhookDispatcher(nil, dispatchConfig(), repo, resilience.NewBreakerGroup(resilience.DefaultSettings()))

	event := messageEvent()
	dispatcher.Dispatch(ctx, "client-a", "+15550001111", event)

	require.Len(t, *requests, 1)
	got := (*requests)[0]

	assert.Equal(t, "tkn-1", got.tokenArg)

	wantSig, err := webhook.Signature(got.body, "s3cret", "sha512")
	require.NoError(t, err)
	assert.Equal(t, wantSig, got.signature)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, "+15550001111", payload["receiver"])
	assert.Equal(t, "message", payload["type"])
	require.NotNil(t, payload["payload"])

	assert.Equal(t, 1, event.ackCount())
}

func TestDispatcher_NoTargetAcksWithoutDelivery(t *testing.T) {
	ctx := context.Background()
	server, requests := captureServer(t)
	_ = server

	repo := &fakeWebhookRepo{endpoint: &models.WebhookEndpoint{ClientID: "client-a"}}
	dispatcher := business.NewWebhookDispatcher(nil, dispatchConfig(), repo, resilience.NewBreakerGroup(resilience.DefaultSettings()))

	event := messageEvent()
	dispatcher.Dispatch(ctx, "client-a", "+15550001111", event)

	assert.Empty(t, *requests)
	assert.Equal(t, 1, event.ackCount())
}

func TestDispatcher_MissingEndpointRowAcks(t *testing.T) {
	ctx := context.Background()

	repo := &fakeWebhookRepo{err: gorm.ErrRecordNotFound}
	dispatcher := business.NewWebhookDispatcher(nil, dispatchConfig(), repo, resilience.NewBreakerGroup(resilience.DefaultSettings()))

	event := messageEvent()
	dispatcher.Dispatch(ctx, "client-a", "+15550001111", event)

	assert.Equal(t, 1, event.ackCount())
}

func TestDispatcher_FailedDeliveryStillAcks(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	repo := &fakeWebhookRepo{endpoint: &models.WebhookEndpoint{ClientID: "client-a", URI: server.URL}}
	dispatcher := business.NewWebhookDispatcher(nil, dispatchConfig(), repo, resilience.NewBreakerGroup(resilience.DefaultSettings()))

	event := messageEvent()
	dispatcher.Dispatch(ctx, "client-a", "+15550001111", event)

	// At-most-once: a failed delivery is never redelivered.
	assert.Equal(t, 1, event.ackCount())
}

func TestDispatcher_OpenBreakerSkipsEndpoint(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	repo := &fakeWebhookRepo{endpoint: &models.WebhookEndpoint{ClientID: "client-a", URI: server.URL}}
	breakers := resilience.NewBreakerGroup(resilience.Settings{MaxFailures: 1, ResetTimeout: time.Minute})
	dispatcher := business.NewWebhookDispatcher(nil, dispatchConfig(), repo, breakers)

	first := messageEvent()
	dispatcher.Dispatch(ctx, "client-a", "+15550001111", first)
	require.Equal(t, 1, currentHits(&mu, &hits))
	assert.Equal(t, 1, first.ackCount())

	// The breaker is now open; the endpoint is not called but the event is
	// still acknowledged.
	second := messageEvent()
	dispatcher.Dispatch(ctx, "client-a", "+15550001111", second)
	assert.Equal(t, 1, currentHits(&mu, &hits))
	assert.Equal(t, 1, second.ackCount())
	assert.Equal(t, resilience.StateOpen, breakers.State("client-a"))
}

func currentHits(mu *sync.Mutex, hits *int) int {
	mu.Lock()
	defer mu.Unlock()
	return *hits
}

func TestDispatcher_TargetChangesTakeEffectImmediately(t *testing.T) {
	ctx := context.Background()
	serverA, requestsA := captureServer(t)
	serverB, requestsB := captureServer(t)

	repo := &fakeWebhookRepo{endpoint: &models.WebhookEndpoint{ClientID: "client-a", URI: serverA.URL}}
	dispatcher := business.NewWebhookDispatcher(nil, dispatchConfig(), repo, resilience.NewBreakerGroup(resilience.DefaultSettings()))

	dispatcher.Dispatch(ctx, "client-a", "+15550001111", messageEvent())
	require.Len(t, *requestsA, 1)

	repo.setEndpoint(&models.WebhookEndpoint{ClientID: "client-a", URI: serverB.URL})

	dispatcher.Dispatch(ctx, "client-a", "+15550001111", messageEvent())
	assert.Len(t, *requestsA, 1)
	assert.Len(t, *requestsB, 1)
}
