package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rezonia/sefaz-bridge/internal/model"
)

// Metrics provides observability for document extraction and authority lookups.
type Metrics struct {
	DocumentsParsed    *prometheus.CounterVec
	PayloadsDecoded    *prometheus.CounterVec
	AuthorityOutcomes  *prometheus.CounterVec
	LookupDuration     prometheus.Histogram
	CertificateChanges *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsParsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sefaz_bridge_documents_parsed_total",
			Help: "Documents parsed, by result (ok or error kind)",
		}, []string{"result"}),
		PayloadsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sefaz_bridge_payloads_decoded_total",
			Help: "Distribution payloads decoded, by encoding",
		}, []string{"encoding"}),
		AuthorityOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sefaz_bridge_authority_outcomes_total",
			Help: "Interpreted authority responses, by outcome",
		}, []string{"outcome"}),
		LookupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sefaz_bridge_lookup_duration_seconds",
			Help:    "Duration of access key lookups against the authority",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CertificateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sefaz_bridge_certificate_changes_total",
			Help: "Certificate uploads and removals",
		}, []string{"action"}),
	}
}

// ObserveParse records the result of a document extraction.
func (m *Metrics) ObserveParse(err error) {
	m.DocumentsParsed.WithLabelValues(result(err)).Inc()
}

// ObserveDecode records a decoded payload or a decode failure.
func (m *Metrics) ObserveDecode(encoding model.PayloadEncoding, err error) {
	if err != nil {
		m.PayloadsDecoded.WithLabelValues(result(err)).Inc()
		return
	}
	m.PayloadsDecoded.WithLabelValues(string(encoding)).Inc()
}

// ObserveOutcome records the terminal state of an interpreted response.
func (m *Metrics) ObserveOutcome(outcome model.Outcome) {
	m.AuthorityOutcomes.WithLabelValues(string(outcome)).Inc()
}

// ObserveLookup records the duration of a lookup.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveLookup(start time.Time) {
	m.LookupDuration.Observe(time.Since(start).Seconds())
}

// IncrementCertificate records a certificate upload or removal.
func (m *Metrics) IncrementCertificate(action string) {
	m.CertificateChanges.WithLabelValues(action).Inc()
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := model.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
