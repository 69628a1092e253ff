package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RentalStatus is the lifecycle of one rented number on the mock provider.
type RentalStatus string

const (
	RentalWaiting  RentalStatus = "waiting"
	RentalReceived RentalStatus = "received"
	RentalRejected RentalStatus = "rejected"
)

type Rental struct {
	RequestID   string
	Number      string
	Application string
	Status      RentalStatus
	Code        string
	Text        string
	DeliverAt   time.Time
	Deliver     bool
}

type ServiceItem struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Cost  float64 `json:"cost"`
	Count int     `json:"count"`
}

type HealthResponse struct {
	Status       string    `json:"status"`
	ProviderID   string    `json:"provider_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
	Rentals      int       `json:"rentals"`
}

// MockProvider rents fake numbers and, with probability deliveryRate, makes
// a code available after a random delay.
type MockProvider struct {
	token        string
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	providerID   string
	services     []ServiceItem

	mu      sync.Mutex
	rng     *rand.Rand
	rentals map[string]*Rental
}

func NewMockProvider(token string, deliveryRate float64, minDelay, maxDelay time.Duration) *MockProvider {
	return &MockProvider{
		token:        token,
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		providerID:   "MOCK_PROVIDER_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		rentals:      make(map[string]*Rental),
		services: []ServiceItem{
			{Code: "wa", Name: "WhatsApp", Cost: 0.45, Count: 120},
			{Code: "tg", Name: "Telegram", Cost: 0.30, Count: 80},
			{Code: "go", Name: "Google", Cost: 0.25, Count: 300},
			{Code: "ig", Name: "Instagram", Cost: 0.12, Count: 0},
		},
	}
}

func (m *MockProvider) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) rent(application string) (*Rental, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.services {
		if s.Code != application {
			continue
		}
		if s.Count == 0 {
			return nil, false
		}
		r := &Rental{
			RequestID:   fmt.Sprintf("%d", 100000+m.rng.Intn(900000)),
			Number:      fmt.Sprintf("1555%07d", m.rng.Intn(10_000_000)),
			Application: application,
			Status:      RentalWaiting,
			DeliverAt:   time.Now().Add(m.randomDelay()),
			Deliver:     m.rng.Float64() < m.deliveryRate,
		}
		if r.Deliver {
			r.Code = fmt.Sprintf("%06d", m.rng.Intn(1_000_000))
			r.Text = fmt.Sprintf("Your %s verification code is %s", s.Name, r.Code)
		}
		m.rentals[r.RequestID] = r
		return r, true
	}
	return nil, false
}

// poll returns a copy of the rental with its status advanced to now.
func (m *MockProvider) poll(requestID string) (Rental, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rentals[requestID]
	if !ok {
		return Rental{}, false
	}
	if r.Status == RentalWaiting && r.Deliver && time.Now().After(r.DeliverAt) {
		r.Status = RentalReceived
	}
	return *r, true
}

func (m *MockProvider) reject(requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rentals[requestID]
	if !ok {
		return false
	}
	r.Status = RentalRejected
	return true
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func fail(c *gin.Context, code, msg string) {
	c.JSON(http.StatusOK, gin.H{
		"success":    false,
		"error_code": code,
		"error_msg":  msg,
	})
}

// requireToken rejects calls whose token query parameter does not match.
func (h *Handler) requireToken(c *gin.Context) {
	if h.provider.token != "" && c.Query("token") != h.provider.token {
		fail(c, "wrong_token", "Wrong token")
		c.Abort()
		return
	}
	c.Next()
}

func (h *Handler) GetNumber(c *gin.Context) {
	application := c.Query("application")
	if application == "" {
		fail(c, "wrong_application", "application is required")
		return
	}

	r, ok := h.provider.rent(application)
	if !ok {
		log.Warn().Str("application", application).Msg("No numbers available")
		fail(c, "no_numbers", "No numbers available for this service")
		return
	}

	log.Info().
		Str("request_id", r.RequestID).
		Str("application", application).
		Str("number", r.Number).
		Bool("will_deliver", r.Deliver).
		Msg("Number rented")

	c.JSON(http.StatusOK, gin.H{
		"request_id": r.RequestID,
		"number":     r.Number,
	})
}

func (h *Handler) GetSms(c *gin.Context) {
	requestID := c.Query("request_id")
	r, ok := h.provider.poll(requestID)
	if !ok {
		fail(c, "wrong_request_id", "Unknown request_id")
		return
	}

	switch r.Status {
	case RentalReceived:
		c.JSON(http.StatusOK, gin.H{
			"request_id": r.RequestID,
			"sms_code":   r.Code,
			"sms_text":   r.Text,
		})
	case RentalRejected:
		fail(c, "rejected", "Number was released")
	default:
		fail(c, "wait_sms", "Still waiting for sms")
	}
}

func (h *Handler) SetStatus(c *gin.Context) {
	requestID := c.Query("request_id")
	if c.Query("status") != "reject" {
		fail(c, "wrong_status", "Unsupported status")
		return
	}
	if !h.provider.reject(requestID) {
		fail(c, "wrong_request_id", "Unknown request_id")
		return
	}
	log.Info().Str("request_id", requestID).Msg("Number released")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) GetServices(c *gin.Context) {
	h.provider.mu.Lock()
	services := append([]ServiceItem(nil), h.provider.services...)
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	h.provider.mu.Lock()
	rentals := len(h.provider.rentals)
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		ProviderID:   h.provider.providerID,
		Timestamp:    time.Now(),
		DeliveryRate: h.provider.deliveryRate,
		Rentals:      rentals,
	})
}

// UpdateConfig changes the delivery rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	h.provider.mu.Lock()
	if config.DeliveryRate != nil && *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
		h.provider.deliveryRate = *config.DeliveryRate
		log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
	}
	rate := h.provider.deliveryRate
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message":       "Configuration updated",
		"delivery_rate": rate,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	control := router.Group("/control", handler.requireToken)
	{
		control.GET("/get-number", handler.GetNumber)
		control.GET("/get-sms", handler.GetSms)
		control.GET("/set-status", handler.SetStatus)
		control.GET("/get-services", handler.GetServices)
	}
	router.PUT("/config", handler.UpdateConfig)
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	token := getEnv("TOKEN", "")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 0.8)
	minDelay := getEnvDuration("MIN_DELAY", 5*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 30*time.Second)

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting mock upstream provider")

	router := SetupRouter(NewHandler(NewMockProvider(token, deliveryRate, minDelay, maxDelay)))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
