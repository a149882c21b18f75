// Package dispatch delivers triage alerts to registered HTTP endpoints.
// Endpoints subscribe to event patterns; deliveries are signed with
// HMAC-SHA256, run on a background worker pool, and retry failed posts
// with exponential backoff.
package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ---- domain structs ----

// Endpoint is a registered alert destination.
type Endpoint struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert is one outbound notification. Payload carries the marshaled
// assessment so the package stays independent of the triage domain.
type Alert struct {
	ID        uuid.UUID       `json:"id"`
	Event     string          `json:"event"`
	PatientID uuid.UUID       `json:"patient_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Delivery records the outcome of posting one alert to one endpoint.
type Delivery struct {
	ID         string        `json:"id"`
	EndpointID string        `json:"endpoint_id"`
	AlertID    uuid.UUID     `json:"alert_id"`
	Event      string        `json:"event"`
	StatusCode int           `json:"status_code"`
	Attempts   int           `json:"attempts"`
	Status     string        `json:"status"` // "success" or "failed"
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ---- endpoint store ----

// EndpointStore persists registered endpoints.
type EndpointStore interface {
	Create(ctx context.Context, ep *Endpoint) error
	Get(ctx context.Context, id string) (*Endpoint, error)
	List(ctx context.Context) ([]*Endpoint, error)
	Delete(ctx context.Context, id string) error
}

// InMemoryEndpointStore is a thread-safe in-memory EndpointStore.
type InMemoryEndpointStore struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	order     []string
}

func NewInMemoryEndpointStore() *InMemoryEndpointStore {
	return &InMemoryEndpointStore{endpoints: make(map[string]*Endpoint)}
}

func (s *InMemoryEndpointStore) Create(_ context.Context, ep *Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[ep.ID] = ep
	s.order = append(s.order, ep.ID)
	return nil
}

func (s *InMemoryEndpointStore) Get(_ context.Context, id string) (*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("endpoint %s not found", id)
	}
	return ep, nil
}

func (s *InMemoryEndpointStore) List(_ context.Context) ([]*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Endpoint, 0, len(s.order))
	for _, id := range s.order {
		if ep := s.endpoints[id]; ep != nil {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (s *InMemoryEndpointStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[id]; !ok {
		return fmt.Errorf("endpoint %s not found", id)
	}
	delete(s.endpoints, id)
	for i, eid := range s.order {
		if eid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ---- signing ----

// SignPayload computes the hex-encoded HMAC-SHA256 of the payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the hex-encoded signature matches the
// HMAC-SHA256 of payload under the given secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func validateEndpointURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

// eventMatches checks an event type against a subscription pattern.
// Patterns are exact ("triage.critical") or wildcard ("triage.*", "*.critical").
func eventMatches(pattern, eventType string) bool {
	if pattern == eventType {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(eventType, pattern[1:])
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(eventType, pattern[:len(pattern)-1])
	}
	return false
}

func endpointMatchesEvent(ep *Endpoint, eventType string) bool {
	for _, pat := range ep.Events {
		if eventMatches(pat, eventType) {
			return true
		}
	}
	return false
}

// ---- delivery log ----

const deliveryLogCapacity = 256

// deliveryLog keeps the most recent delivery outcomes in a fixed-size ring.
type deliveryLog struct {
	mu   sync.RWMutex
	ring []*Delivery
	next int
	size int
}

func newDeliveryLog(capacity int) *deliveryLog {
	return &deliveryLog{ring: make([]*Delivery, capacity)}
}

func (l *deliveryLog) add(d *Delivery) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring[l.next] = d
	l.next = (l.next + 1) % len(l.ring)
	if l.size < len(l.ring) {
		l.size++
	}
}

// byEndpoint returns up to limit deliveries for the endpoint, newest first.
func (l *deliveryLog) byEndpoint(endpointID string, limit int) []*Delivery {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []*Delivery{}
	for i := 1; i <= l.size && len(out) < limit; i++ {
		idx := (l.next - i + len(l.ring)) % len(l.ring)
		if d := l.ring[idx]; d != nil && d.EndpointID == endpointID {
			out = append(out, d)
		}
	}
	return out
}

// ---- dispatcher ----

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the delivery HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = c }
}

// WithWorkers sets the number of delivery workers.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) { d.workers = n }
}

// WithMaxRetries sets the number of post attempts per endpoint.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) { d.maxRetries = n }
}

// WithQueueSize sets the alert queue capacity.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) { d.queue = make(chan Alert, n) }
}

// WithRetryBaseDelay sets the first backoff delay; each retry doubles it.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.retryDelay = delay }
}

// Dispatcher fans alerts out to matching endpoints from a worker pool.
type Dispatcher struct {
	store      EndpointStore
	queue      chan Alert
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	workers    int
	log        *deliveryLog
	logger     zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(store EndpointStore, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:      store,
		queue:      make(chan Alert, 64),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		retryDelay: time.Second,
		workers:    2,
		log:        newDeliveryLog(deliveryLogCapacity),
		logger:     logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// RegisterEndpoint validates and stores a new endpoint. An empty secret is
// replaced with a cryptographically random one.
func (d *Dispatcher) RegisterEndpoint(ctx context.Context, name, rawURL, secret string, events []string) (*Endpoint, error) {
	if err := validateEndpointURL(rawURL); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("at least one event pattern is required")
	}
	if secret == "" {
		s, err := generateSecret()
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		secret = s
	}

	ep := &Endpoint{
		ID:        uuid.New().String(),
		Name:      name,
		URL:       rawURL,
		Secret:    secret,
		Events:    events,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := d.store.Create(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// Enqueue hands an alert to the worker pool without blocking. It reports
// false when the dispatcher is stopped or the queue is full; the alert is
// dropped in both cases.
func (d *Dispatcher) Enqueue(alert Alert) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- alert:
		return true
	default:
		d.logger.Warn().Str("event", alert.Event).Msg("alert queue full, dropping alert")
		return false
	}
}

// Start launches the delivery workers. They run until the context is
// cancelled or Stop drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Stop closes the queue, lets the workers drain it, and waits for
// in-flight deliveries to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, alert)
		}
	}
}

// deliver fans one alert out to every active endpoint subscribed to its
// event type.
func (d *Dispatcher) deliver(ctx context.Context, alert Alert) {
	endpoints, err := d.store.List(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("list alert endpoints failed")
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		d.logger.Error().Err(err).Msg("marshal alert failed")
		return
	}

	for _, ep := range endpoints {
		if !ep.Active || !endpointMatchesEvent(ep, alert.Event) {
			continue
		}
		d.deliverTo(ctx, ep, alert, payload)
	}
}

// deliverTo posts the signed payload to one endpoint, retrying failures
// with exponential backoff, and records the final outcome.
func (d *Dispatcher) deliverTo(ctx context.Context, ep *Endpoint, alert Alert, payload []byte) {
	sig := SignPayload(payload, ep.Secret)
	delivery := &Delivery{
		ID:         uuid.New().String(),
		EndpointID: ep.ID,
		AlertID:    alert.ID,
		Event:      alert.Event,
		CreatedAt:  time.Now(),
	}

	start := time.Now()
	delay := d.retryDelay
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		delivery.Attempts = attempt
		code, err := d.post(ctx, ep, sig, payload)
		delivery.StatusCode = code
		if err == nil {
			delivery.Status = "success"
			delivery.Error = ""
			break
		}
		delivery.Status = "failed"
		delivery.Error = err.Error()

		if attempt == d.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			attempt = d.maxRetries
		case <-time.After(delay):
			delay *= 2
		}
	}
	delivery.Duration = time.Since(start)
	d.log.add(delivery)

	evt := d.logger.Info()
	if delivery.Status != "success" {
		evt = d.logger.Warn()
	}
	evt.Str("endpoint", ep.ID).
		Str("event", alert.Event).
		Str("status", delivery.Status).
		Int("attempts", delivery.Attempts).
		Msg("alert delivery finished")
}

func (d *Dispatcher) post(ctx context.Context, ep *Endpoint, sig string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Triage-Signature", "sha256="+sig)
	req.Header.Set("X-Triage-Timestamp", time.Now().UTC().Format(time.RFC3339))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Deliveries returns the most recent recorded deliveries for an endpoint.
func (d *Dispatcher) Deliveries(endpointID string, limit int) []*Delivery {
	if limit <= 0 {
		limit = deliveryLogCapacity
	}
	return d.log.byEndpoint(endpointID, limit)
}
