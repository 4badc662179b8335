package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordWrite(t *testing.T) {
	before := testutil.ToFloat64(RecordStoreWrites.WithLabelValues("posts", "failure"))
	RecordWrite("posts", false)
	after := testutil.ToFloat64(RecordStoreWrites.WithLabelValues("posts", "failure"))
	assert.Equal(t, before+1, after)
}

func TestRecordLogin_EmptyKindIsFailure(t *testing.T) {
	before := testutil.ToFloat64(LoginAttempts.WithLabelValues("failed"))
	RecordLogin("")
	assert.Equal(t, before+1, testutil.ToFloat64(LoginAttempts.WithLabelValues("failed")))
}

func TestRecordResetTokens_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(ResetTokens.WithLabelValues("purged"))
	RecordResetTokens("purged", 0)
	RecordResetTokens("purged", 2)
	assert.Equal(t, before+2, testutil.ToFloat64(ResetTokens.WithLabelValues("purged")))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/posts", "200"))
	RecordHTTPRequest("GET", "/api/posts", "200", 15*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/posts", "200")))
}
