// Package webhook implements the signing, retrying HTTP delivery primitive
// used to ship event payloads to tenant endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultMaxRetries      = 5
	DefaultRetryDelay      = 10 * time.Second
	DefaultAlgorithm       = "sha512"
	DefaultSignatureHeader = "X-Hook-Signature"
	DefaultTokenParam      = "token"

	requestTimeout = 30 * time.Second
)

// InvalidStatusError reports a response status outside the 2xx range.
type InvalidStatusError struct {
	Status int
	URI    string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("illegal response status %d from webhook %s", e.Status, e.URI)
}

// RetriesExceededError reports that the retry budget ran out without a
// successful attempt. Tries counts every attempt made, including the first.
type RetriesExceededError struct {
	Tries      int
	MaxRetries int
	URI        string
}

func (e *RetriesExceededError) Error() string {
	return fmt.Sprintf("too many retries (%d tries) for webhook delivery to %s", e.Tries, e.URI)
}

// Options configures a single delivery. Use DefaultOptions as the base;
// the zero value retries nothing and signs nothing.
type Options struct {
	// Secret is the HMAC key. Signing is skipped when empty.
	Secret string

	// Algorithm selects the HMAC hash, sha256 or sha512.
	Algorithm string

	// SignatureHeader carries the hex-encoded HMAC of the exact body bytes.
	SignatureHeader string

	// Token, when set, is appended to the target URI as a query parameter.
	// It travels in plain text and ends up in URLs and request logs on the
	// receiving side.
	Token      string
	TokenParam string

	// MaxRetries is the number of additional attempts after the first
	// failed one.
	MaxRetries int

	// RetryDelay is the fixed pause between attempts. No backoff.
	RetryDelay time.Duration

	// Headers are extra headers included on every attempt.
	Headers http.Header

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client

	// OnRetry observes every failed attempt together with its ordinal.
	OnRetry func(err error, tries int)

	// OnResponse receives the fully buffered response body of the one
	// successful attempt.
	OnResponse func(body []byte, header http.Header)
}

// DefaultOptions returns Options carrying all package defaults.
func DefaultOptions() Options {
	return Options{
		Algorithm:       DefaultAlgorithm,
		SignatureHeader: DefaultSignatureHeader,
		TokenParam:      DefaultTokenParam,
		MaxRetries:      DefaultMaxRetries,
		RetryDelay:      DefaultRetryDelay,
	}
}

// Signature computes the hex-encoded HMAC of payload under secret.
func Signature(payload []byte, secret, algorithm string) (string, error) {
	var constructor func() hash.Hash
	switch algorithm {
	case "", DefaultAlgorithm:
		constructor = sha512.New
	case "sha256":
		constructor = sha256.New
	default:
		return "", fmt.Errorf("unsupported webhook signature algorithm: %s", algorithm)
	}

	mac := hmac.New(constructor, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Deliver posts payload to uri, retrying failed attempts with a fixed delay
// until the budget is spent. Any 2xx response is success; everything else is
// a failed attempt. The retry sleep honors ctx so shutdown can abort an
// in-flight delivery.
func Deliver(ctx context.Context, uri string, payload []byte, opts Options) error {
	target, err := injectToken(uri, opts)
	if err != nil {
		return err
	}

	headers := make(http.Header, len(opts.Headers)+2)
	for name, values := range opts.Headers {
		headers[name] = values
	}

	if opts.Secret != "" {
		signature, sigErr := Signature(payload, opts.Secret, opts.Algorithm)
		if sigErr != nil {
			return sigErr
		}
		headerName := opts.SignatureHeader
		if headerName == "" {
			headerName = DefaultSignatureHeader
		}
		headers.Set(headerName, signature)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	delay := opts.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	tries := 0
	for {
		attemptErr := attempt(ctx, client, target, payload, headers, opts.OnResponse)
		if attemptErr == nil {
			return nil
		}

		tries++
		if opts.OnRetry != nil {
			opts.OnRetry(attemptErr, tries)
		}
		if tries > maxRetries {
			return &RetriesExceededError{Tries: tries, MaxRetries: maxRetries, URI: uri}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// attempt performs exactly one POST and classifies the outcome.
func attempt(
	ctx context.Context,
	client *http.Client,
	target string,
	payload []byte,
	headers http.Header,
	onResponse func([]byte, http.Header),
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	for name, values := range headers {
		req.Header[name] = values
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	req.ContentLength = int64(len(payload))

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &InvalidStatusError{Status: resp.StatusCode, URI: target}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if onResponse != nil {
		onResponse(body, resp.Header)
	}
	return nil
}

// injectToken appends the token query parameter to uri when one is
// configured.
func injectToken(uri string, opts Options) (string, error) {
	if opts.Token == "" {
		return uri, nil
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid webhook uri %q: %w", uri, err)
	}

	param := opts.TokenParam
	if param == "" {
		param = DefaultTokenParam
	}

	query := parsed.Query()
	query.Set(param, opts.Token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
