package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cycle metrics
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genome_bot_jobs_total",
			Help: "Scheduler jobs by kind and outcome (ran, skipped, failed)",
		},
		[]string{"job", "outcome"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genome_bot_cycle_duration_seconds",
			Help:    "Duration of evaluation cycles",
			Buckets: prometheus.DefBuckets,
		},
	)

	symbolFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genome_bot_symbol_failures_total",
			Help: "Symbols skipped in a cycle by error category",
		},
		[]string{"symbol", "category"},
	)

	// Decision metrics
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genome_bot_decisions_total",
			Help: "Consensus decisions by direction",
		},
		[]string{"symbol", "direction"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genome_bot_orders_total",
			Help: "Orders by action and outcome or rejection reason",
		},
		[]string{"action", "outcome"},
	)

	// Risk metrics
	breakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genome_bot_circuit_breaker_trips_total",
			Help: "Circuit breaker trips per group",
		},
		[]string{"group"},
	)

	exposurePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "genome_bot_exposure_percent",
			Help: "Open notional as percent of bankroll",
		},
		[]string{"environment"},
	)

	// Population metrics
	fitnessGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "genome_bot_fitness",
			Help: "Population fitness (best, average)",
		},
		[]string{"stat"},
	)

	deathsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genome_bot_deaths_total",
			Help: "Agent deaths per group",
		},
		[]string{"group"},
	)

	generationGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "genome_bot_generation",
			Help: "Current generation per group",
		},
		[]string{"group"},
	)

	championSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genome_bot_champion_syncs_total",
			Help: "Champion propagations by environment and outcome",
		},
		[]string{"environment", "outcome"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genome_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(symbolFailures)
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(ordersTotal)
	prometheus.MustRegister(breakerTrips)
	prometheus.MustRegister(exposurePercent)
	prometheus.MustRegister(fitnessGauge)
	prometheus.MustRegister(deathsTotal)
	prometheus.MustRegister(generationGauge)
	prometheus.MustRegister(championSyncs)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordJob counts a scheduler job outcome
func RecordJob(job, outcome string) {
	cyclesTotal.WithLabelValues(job, outcome).Inc()
}

// ObserveCycle records an evaluation cycle's duration
func ObserveCycle(seconds float64) {
	cycleDuration.Observe(seconds)
}

// RecordSymbolFailure counts a skipped symbol
func RecordSymbolFailure(symbol, category string) {
	symbolFailures.WithLabelValues(symbol, category).Inc()
}

// RecordDecision counts a consensus decision
func RecordDecision(symbol, direction string) {
	decisionsTotal.WithLabelValues(symbol, direction).Inc()
}

// RecordOrder counts an order attempt
func RecordOrder(action, outcome string) {
	ordersTotal.WithLabelValues(action, outcome).Inc()
}

// RecordBreakerTrip counts a circuit breaker trip
func RecordBreakerTrip(group string) {
	breakerTrips.WithLabelValues(group).Inc()
}

// SetExposure updates the exposure gauge
func SetExposure(environment string, pct float64) {
	exposurePercent.WithLabelValues(environment).Set(pct)
}

// SetFitness updates population fitness gauges
func SetFitness(best, average float64) {
	fitnessGauge.WithLabelValues("best").Set(best)
	fitnessGauge.WithLabelValues("average").Set(average)
}

// RecordDeath counts an agent death
func RecordDeath(group string) {
	deathsTotal.WithLabelValues(group).Inc()
}

// SetGeneration updates a group's generation gauge
func SetGeneration(group string, generation int) {
	generationGauge.WithLabelValues(group).Set(float64(generation))
}

// RecordChampionSync counts a propagation attempt
func RecordChampionSync(environment, outcome string) {
	championSyncs.WithLabelValues(environment, outcome).Inc()
}

// RecordError records an error metric
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
