package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerServesMetrics(t *testing.T) {
	PoolTasksPushed.Inc()

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()

	Handler().ServeHTTP(rr, req)

	require.Equal(t, 200, rr.Code)
	require.Contains(t, rr.Body.String(), "syskit_pool_tasks_pushed_total")
}
