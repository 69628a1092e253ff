package prom

import (
	"sync"

	xhttp "github.com/nimasrn/sms-verify/pkg/http"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemSession  = "session"
	SystemPayment  = "payment"
	SystemUpstream = "upstream"
	SystemAudit    = "audit"
)

const (
	MetricNumberRequests   = "number_requests_total"
	MetricDeliveryChecks   = "delivery_checks_total"
	MetricRefundedCredits  = "refunded_credits_total"
	MetricPayments         = "payments_total"
	MetricCreditsPurchased = "credits_purchased_total"
	MetricUpstreamDuration = "request_duration_seconds"
	MetricEventsPersisted  = "events_persisted_total"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers every metric of the service. Until it is called all
// recording helpers are no-ops, which keeps tests free of global registry state.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemSession, MetricNumberRequests, []string{"result"}))
	hasError(createCounterVec(SystemSession, MetricDeliveryChecks, []string{"outcome"}))
	hasError(createCounterVec(SystemSession, MetricRefundedCredits, []string{"server"}))
	hasError(createCounterVec(SystemPayment, MetricPayments, []string{"provider", "result"}))
	hasError(createCounterVec(SystemPayment, MetricCreditsPurchased, []string{"provider"}))
	hasError(createHistogramVec(SystemUpstream, MetricUpstreamDuration, []string{"server", "op"}))
	hasError(createCounterVec(SystemAudit, MetricEventsPersisted, []string{"event_type"}))

	if err == nil {
		MetricSystemEnabled = true
	}
	return err
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url, "addr", port)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, labels)
	return prometheus.Register(MetricCollectionHistogramVec[subsystem+name])
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func IncNumberRequest(result string) {
	IncCounterVec(SystemSession, MetricNumberRequests, result)
}

func IncDeliveryCheck(outcome string) {
	IncCounterVec(SystemSession, MetricDeliveryChecks, outcome)
}

func AddRefundedCredits(server string, credits int64) {
	AddCounterVec(SystemSession, MetricRefundedCredits, float64(credits), server)
}

func IncPayment(provider, result string) {
	IncCounterVec(SystemPayment, MetricPayments, provider, result)
}

func AddCreditsPurchased(provider string, credits int64) {
	AddCounterVec(SystemPayment, MetricCreditsPurchased, float64(credits), provider)
}

func ObserveUpstream(server, op string, seconds float64) {
	AddHistogramVec(SystemUpstream, MetricUpstreamDuration, seconds, server, op)
}

func IncEventPersisted(eventType string) {
	IncCounterVec(SystemAudit, MetricEventsPersisted, eventType)
}
