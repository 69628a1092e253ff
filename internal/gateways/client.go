package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/prom"
	"github.com/valyala/fasthttp"
)

const (
	opGetNumber   = "get_number"
	opGetSms      = "get_sms"
	opSetStatus   = "set_status"
	opGetServices = "get_services"
)

type ServerConfig struct {
	Server model.Server
	URL    string
	Token  string
}

type Config struct {
	Servers                 []ServerConfig
	Country                 string
	PhoneRegion             string
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	ReadBufferSize          int
	WriteBufferSize         int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	EvaluateInterval        time.Duration

	// Dial overrides the TCP dialer, tests point it at an in-memory listener.
	Dial fasthttp.DialFunc
}

type Client struct {
	config    *Config
	providers map[model.Server]*Provider
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Servers) == 0 {
		return nil, errors.New("at least one upstream server is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = 30 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 200 * time.Millisecond
	}
	if config.EvaluateInterval <= 0 {
		config.EvaluateInterval = 30 * time.Second
	}

	client := &Client{
		config:    config,
		providers: make(map[model.Server]*Provider, len(config.Servers)),
		stopCh:    make(chan struct{}),
	}

	for _, sc := range config.Servers {
		if !sc.Server.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownServer, sc.Server)
		}
		if sc.URL == "" {
			continue
		}
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
			Dial:                config.Dial,
		}
		client.providers[sc.Server] = NewProvider(sc.Server, sc.URL, sc.Token, httpClient)
		logger.Info("upstream provider initialized", "server", sc.Server, "url", sc.URL)
	}
	if len(client.providers) == 0 {
		return nil, errors.New("no upstream server has a url configured")
	}

	client.wg.Add(1)
	go client.metricsCollector()

	return client, nil
}

func (c *Client) provider(server model.Server) (*Provider, error) {
	p, ok := c.providers[server]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, server)
	}
	if !p.IsAvailable() {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, server)
	}
	return p, nil
}

// HasServer reports whether server has a configured provider.
func (c *Client) HasServer(server model.Server) bool {
	_, ok := c.providers[server]
	return ok
}

// AcquireNumber rents a number. It is never retried here: a lost response may
// still have reserved a number upstream.
func (c *Client) AcquireNumber(ctx context.Context, server model.Server, req AcquireRequest) (*AcquireResult, error) {
	p, err := c.provider(server)
	if err != nil {
		return nil, err
	}
	country := req.Country
	if country == "" {
		country = c.config.Country
	}

	var resp getNumberResponse
	err = c.call(ctx, p, opGetNumber, "/control/get-number", map[string]string{
		"application": req.ServiceCode,
		"country":     country,
		"maxPrice":    strconv.FormatInt(req.MaxPrice, 10),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.failed() {
		return nil, providerError(p, resp.envelope, "failed to get phone number")
	}
	if resp.Number == "" || resp.RequestID == "" {
		return nil, &ProviderError{Server: string(p.server), Message: "response carries no number"}
	}

	return &AcquireResult{
		PhoneNumber: normalizePhone(string(resp.Number), c.config.PhoneRegion),
		RequestID:   string(resp.RequestID),
	}, nil
}

// PollDelivery asks whether a code arrived for requestID. No code yet is not an error.
func (c *Client) PollDelivery(ctx context.Context, server model.Server, requestID string) (*PollResult, error) {
	p, err := c.provider(server)
	if err != nil {
		return nil, err
	}

	var resp getSmsResponse
	err = c.call(ctx, p, opGetSms, "/control/get-sms", map[string]string{"request_id": requestID}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.SmsCode != "" {
		return &PollResult{Received: true, Code: resp.SmsCode, Text: resp.SmsText}, nil
	}
	if resp.ErrorCode == waitingCode || !resp.failed() {
		return &PollResult{Received: false}, nil
	}
	return nil, providerError(p, resp.envelope, "failed to read sms")
}

// ReleaseNumber hands a rented number back to the provider.
func (c *Client) ReleaseNumber(ctx context.Context, server model.Server, requestID string) error {
	p, err := c.provider(server)
	if err != nil {
		return err
	}

	var resp setStatusResponse
	err = c.call(ctx, p, opSetStatus, "/control/set-status", map[string]string{
		"request_id": requestID,
		"status":     "reject",
	}, &resp)
	if err != nil {
		return err
	}
	if resp.failed() {
		return providerError(p, resp.envelope, "failed to release number")
	}
	return nil
}

// ListServices fetches the provider catalog. Reads are safe to retry.
func (c *Client) ListServices(ctx context.Context, server model.Server) ([]UpstreamService, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		p, err := c.provider(server)
		if err != nil {
			return nil, err
		}

		var resp getServicesResponse
		err = c.call(ctx, p, opGetServices, "/control/get-services", map[string]string{
			"country_id": c.config.Country,
		}, &resp)
		if err != nil {
			logger.Warn("catalog fetch failed", "server", server, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		if resp.failed() {
			return nil, providerError(p, resp.envelope, "failed to list services")
		}

		out := make([]UpstreamService, 0, len(resp.Services))
		for _, s := range resp.Services {
			if s.Code == "" {
				continue
			}
			out = append(out, UpstreamService{Code: s.Code, Name: s.Name, Cost: s.Cost, Count: s.Count})
		}
		return out, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// call performs one GET against p, records metrics and decodes the body into out.
func (c *Client) call(ctx context.Context, p *Provider, op, path string, query map[string]string, out interface{}) error {
	start := time.Now()
	body, err := c.doRequest(ctx, p, path, query)
	elapsed := time.Since(start)
	prom.ObserveUpstream(string(p.server), op, elapsed.Seconds())

	if err != nil {
		fails := p.metrics.RecordFailure()
		c.checkCircuitBreaker(p, fails)
		return err
	}
	p.metrics.RecordSuccess(elapsed.Milliseconds())

	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{Server: string(p.server), Message: "malformed response: " + err.Error()}
	}

	logger.Debug("upstream call", "server", p.server, "op", op, "latency_ms", elapsed.Milliseconds())
	return nil
}

func (c *Client) doRequest(ctx context.Context, p *Provider, path string, query map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrUpstreamTimeout
		}
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.url + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	args := req.URI().QueryArgs()
	args.Add("token", p.token)
	for k, v := range query {
		args.Add(k, v)
	}

	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := p.client.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrUpstreamTimeout, p.server)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamTransport, err)
	}

	statusCode := resp.StatusCode()
	if statusCode >= fasthttp.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrUpstreamTransport, statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}

func providerError(p *Provider, env envelope, fallback string) *ProviderError {
	msg := env.ErrorMsg
	if msg == "" {
		msg = fallback
	}
	return &ProviderError{Server: string(p.server), Code: env.ErrorCode, Message: msg}
}

func (c *Client) checkCircuitBreaker(p *Provider, consecutiveFails int32) {
	// the counter only resets on success, so a failed probe after cool-down reopens at once
	if consecutiveFails < int32(c.config.CircuitBreakerThreshold) {
		return
	}
	p.openCircuit(c.config.CircuitBreakerTimeout)
	logger.Warn("circuit breaker opened", "server", p.server, "consecutive_fails", consecutiveFails, "timeout", c.config.CircuitBreakerTimeout)
}

func (c *Client) metricsCollector() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.EvaluateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evaluateProviders()
		case <-c.stopCh:
			return
		}
	}
}

// evaluateProviders moves providers between healthy and degraded from their recent record.
func (c *Client) evaluateProviders() {
	for _, p := range c.providers {
		if p.GetState() == StateCircuitOpen {
			continue
		}

		successRate := p.metrics.SuccessRate()
		avgLatency := p.metrics.AvgLatencyMs()

		if successRate < 0.8 || avgLatency > 5000 {
			if p.GetState() != StateDegraded {
				p.SetState(StateDegraded)
				logger.Warn("upstream provider degraded", "server", p.server, "success_rate", successRate, "avg_latency_ms", avgLatency)
			}
		} else if successRate > 0.95 && avgLatency < 2000 {
			if p.GetState() != StateHealthy {
				p.SetState(StateHealthy)
				logger.Info("upstream provider recovered", "server", p.server)
			}
		}
	}
}

// GetProviderStats returns a snapshot per configured server, ordered by server name.
func (c *Client) GetProviderStats() []ProviderStats {
	stats := make([]ProviderStats, 0, len(c.providers))
	for _, p := range c.providers {
		stats = append(stats, p.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Server < stats[j].Server })
	return stats
}

func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	logger.Info("upstream client closed")
}
