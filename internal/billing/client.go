package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	billingtypes "github.com/star4ce/star4ce-backend/internal/core/datamodel/billing"
)

// ReconcileJob asks the worker pool to re-fetch provider state for one
// dealership's subscription and hand the result to the registered handler.
type ReconcileJob struct {
	DealershipID   int64
	SubscriptionID string
}

type StatusHandler func(job ReconcileJob, sub *billingtypes.Subscription, err error)

type Worker struct {
	ID         int
	WorkerPool chan chan ReconcileJob
	JobChannel chan ReconcileJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan ReconcileJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan ReconcileJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(ReconcileJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing reconcile job", "worker_id", w.ID, "dealership_id", job.DealershipID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	APIBaseURL    string
	APIKey        string
	WebhookSecret string
	PriceID       string
	Timeout       time.Duration
	MaxWorkers    int
	JobQueueSize  int
}

// Client talks to the external billing provider over HTTP and runs a worker
// pool for background subscription reconciliation.
type Client struct {
	apiBaseURL    string
	apiKey        string
	webhookSecret string
	priceID       string
	timeout       time.Duration
	httpClient    *http.Client
	logger        *slog.Logger

	statusHandler StatusHandler
	handlerMu     sync.RWMutex

	jobQueue   chan ReconcileJob
	workerPool chan chan ReconcileJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewClient(config Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		apiBaseURL:    config.APIBaseURL,
		apiKey:        config.APIKey,
		webhookSecret: config.WebhookSecret,
		priceID:       config.PriceID,
		timeout:       timeout,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan ReconcileJob, jobQueueSize),
		workerPool: make(chan chan ReconcileJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.processReconcileJob)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("billing worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- job:
				case <-c.ctx.Done():
					c.logger.Info("dispatcher shutting down")
					return
				}
			case <-c.ctx.Done():
				c.logger.Info("dispatcher shutting down")
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("dispatcher shutting down")
			return
		}
	}
}

func (c *Client) Shutdown() {
	c.logger.Info("shutting down billing client")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("billing client shutdown complete")
}

// RegisterStatusHandler wires the reconcile result back into whatever owns
// subscription state. Must be called before EnqueueReconcile.
func (c *Client) RegisterStatusHandler(handler StatusHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.statusHandler = handler
}

func (c *Client) EnqueueReconcile(job ReconcileJob) error {
	select {
	case c.jobQueue <- job:
		c.logger.Debug("reconcile job queued",
			"dealership_id", job.DealershipID,
			"queue_length", len(c.jobQueue))
		return nil
	default:
		c.logger.Warn("reconcile queue full, dropping job",
			"dealership_id", job.DealershipID,
			"queue_capacity", cap(c.jobQueue))
		return fmt.Errorf("reconcile queue full")
	}
}

func (c *Client) processReconcileJob(job ReconcileJob) {
	c.handlerMu.RLock()
	handler := c.statusHandler
	c.handlerMu.RUnlock()

	if handler == nil {
		c.logger.Warn("no status handler registered, dropping reconcile job",
			"dealership_id", job.DealershipID)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	sub, err := c.GetSubscription(ctx, job.SubscriptionID)
	handler(job, sub, err)
}

// PriceID is the configured plan the checkout flow sells.
func (c *Client) PriceID() string {
	return c.priceID
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req *billingtypes.CheckoutSessionRequest) (*billingtypes.CheckoutSession, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	if req.PriceID == "" {
		req.PriceID = c.priceID
	}

	var session billingtypes.CheckoutSession
	if err := c.doJSON(ctx, http.MethodPost, "/v1/checkout/sessions", req, &session); err != nil {
		return nil, err
	}

	c.logger.Info("checkout session created",
		"session_id", session.ID,
		"customer_email", req.CustomerEmail)

	return &session, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*billingtypes.Subscription, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}

	var sub billingtypes.Subscription
	path := fmt.Sprintf("/v1/subscriptions/%s", subscriptionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &sub); err != nil {
		return nil, err
	}

	return &sub, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*billingtypes.Subscription, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}

	var sub billingtypes.Subscription
	path := fmt.Sprintf("/v1/subscriptions/%s?at_period_end=%t", subscriptionID, atPeriodEnd)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &sub); err != nil {
		return nil, err
	}

	c.logger.Info("subscription canceled at provider",
		"subscription_id", subscriptionID,
		"at_period_end", atPeriodEnd)

	return &sub, nil
}

func (c *Client) ResumeSubscription(ctx context.Context, subscriptionID string) (*billingtypes.Subscription, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}

	var sub billingtypes.Subscription
	path := fmt.Sprintf("/v1/subscriptions/%s/resume", subscriptionID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &sub); err != nil {
		return nil, err
	}

	c.logger.Info("subscription resumed at provider", "subscription_id", subscriptionID)

	return &sub, nil
}

// VerifyWebhookSignature checks the hex-encoded HMAC-SHA256 of the raw payload
// against the shared webhook secret using a constant-time compare.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("billing provider returned 404 for %s", path)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("billing provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
