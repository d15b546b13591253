package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rezonia/sefaz-bridge/internal/metrics"
	"github.com/rezonia/sefaz-bridge/internal/model"
)

func TestMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveParse(nil)
	m.ObserveParse(model.NewStructureError("infNFe", "missing"))
	m.ObserveParse(errors.New("other"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsParsed.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsParsed.WithLabelValues(string(model.KindStructure))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsParsed.WithLabelValues("error")))

	m.ObserveDecode(model.EncodingGzipBase64, nil)
	m.ObserveDecode("", model.NewPayloadDecodeError("bad", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PayloadsDecoded.WithLabelValues("gzip+base64")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PayloadsDecoded.WithLabelValues(string(model.KindPayloadDecode))))

	m.ObserveOutcome(model.OutcomeAuthorized)
	m.ObserveOutcome(model.OutcomeAuthorized)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthorityOutcomes.WithLabelValues("authorized")))

	m.IncrementCertificate("upload")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CertificateChanges.WithLabelValues("upload")))

	m.ObserveLookup(time.Now())
	assert.Equal(t, 1, testutil.CollectAndCount(m.LookupDuration))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.New(prometheus.NewRegistry())
		metrics.New(prometheus.NewRegistry())
	})
}
