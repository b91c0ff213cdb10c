// Package sink delivers rendered messages to chat destinations
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fluxrelay/format"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Sink is a single chat destination
type Sink interface {
	// Name identifies the destination in logs and metrics
	Name() string
	// Markup is the dialect messages for this destination must be rendered in
	Markup() format.Markup
	// Deliver sends message and returns the raw response body of the
	// destination
	Deliver(ctx context.Context, message string) (string, error)
}

// DeliveryError is returned when a destination rejects a message
type DeliveryError struct {
	Sink       string
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: status %d: %s", e.Sink, e.StatusCode, e.Body)
}

type Option func(*transport)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) {
		t.http = c
	}
}

// transport is the HTTP plumbing shared by all sinks
type transport struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
}

func newTransport(name string, minInterval time.Duration, opts []Option) transport {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	t := transport{
		name:    name,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// send waits for the rate limiter, executes req and returns the response
// body. Non-2xx responses are a DeliveryError.
func (t *transport) send(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limiter: %w", t.name, err)
	}

	resp, err := t.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", t.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", t.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DeliveryError{Sink: t.name, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// Result is the outcome of one delivery to one sink
type Result struct {
	Sink     string
	Response string
	Err      error
}

// Fanout delivers a message to several sinks
type Fanout []Sink

// Deliver renders the message once per markup and sends it to every sink.
// All sinks are attempted; the returned error joins every failure and is nil
// only when every sink succeeded.
func (f Fanout) Deliver(ctx context.Context, render func(format.Markup) string) ([]Result, error) {
	rendered := make(map[format.Markup]string, 2)
	results := make([]Result, 0, len(f))
	var errs []error

	for _, s := range f {
		msg, ok := rendered[s.Markup()]
		if !ok {
			msg = render(s.Markup())
			rendered[s.Markup()] = msg
		}

		log.WithFields(log.Fields{
			"sink":    s.Name(),
			"message": msg,
		}).Debug("Delivering message")

		resp, err := s.Deliver(ctx, msg)
		results = append(results, Result{Sink: s.Name(), Response: resp, Err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}

	return results, errors.Join(errs...)
}
