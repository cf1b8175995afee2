package observability

import (
	"testing"
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequest_CopiesLabelValues(t *testing.T) {
	buf := []byte("DELETE")
	method := unsafe.String(&buf[0], len(buf))

	RecordRequest("/metrics-test/:id", method, 204, time.Millisecond)
	RecordError("/metrics-test/:id", method, "NOT_FOUND")
	copy(buf, "GET\x00\x00\x00")

	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/metrics-test/:id", "DELETE", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpErrorsTotal.WithLabelValues("/metrics-test/:id", "DELETE", "NOT_FOUND")))

	_, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
}
