package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPRequestsTotal_Labels(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/articles", "200"))
	HTTPRequestsTotal.WithLabelValues("GET", "/articles", "200").Inc()
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/articles", "200"))
	assert.Equal(t, before+1, after)
}

func TestAuthDenialsTotal(t *testing.T) {
	before := testutil.ToFloat64(AuthDenialsTotal.WithLabelValues("create", "no_capability"))
	AuthDenialsTotal.WithLabelValues("create", "no_capability").Inc()
	after := testutil.ToFloat64(AuthDenialsTotal.WithLabelValues("create", "no_capability"))
	assert.Equal(t, before+1, after)
}

func TestIDAllocationRetriesTotal(t *testing.T) {
	before := testutil.ToFloat64(IDAllocationRetriesTotal.WithLabelValues("article"))
	IDAllocationRetriesTotal.WithLabelValues("article").Add(3)
	after := testutil.ToFloat64(IDAllocationRetriesTotal.WithLabelValues("article"))
	assert.Equal(t, before+3, after)
}
