package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegisterOnSeparateRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(nil)

	a.RecordsScanned.WithLabelValues(PassVocabulary).Add(3)
	b.RecordsScanned.WithLabelValues(PassVocabulary).Add(1)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.RecordsScanned.WithLabelValues(PassVocabulary)))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.RecordsScanned.WithLabelValues(PassVocabulary)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.VocabularyWords.Set(4)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "phraseindex_vocabulary_words 4"))
}

func TestPushSendsToGateway(t *testing.T) {
	var gotPath string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	m := New(prometheus.NewRegistry())
	m.BuildsTotal.WithLabelValues("success").Inc()

	require.NoError(t, m.Push(context.Background(), gw.URL, "osm-phrase-index", "run-1"))
	assert.Equal(t, "/metrics/job/osm-phrase-index/run_id/run-1", gotPath)
}
