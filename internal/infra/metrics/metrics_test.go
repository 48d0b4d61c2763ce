//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobCountersNormaliseLabels(t *testing.T) {
	before := testutil.ToFloat64(flashcardJobsTotal.WithLabelValues("success", "skipped"))
	IncJob(" Success ", "SKIPPED")
	after := testutil.ToFloat64(flashcardJobsTotal.WithLabelValues("success", "skipped"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestRetryWaitAccumulates(t *testing.T) {
	before := testutil.ToFloat64(flashcardRetryWaitSeconds.WithLabelValues("rate_limit"))
	AddRetryWait("rate_limit", 15)
	AddRetryWait("rate_limit", 10)
	after := testutil.ToFloat64(flashcardRetryWaitSeconds.WithLabelValues("rate_limit"))
	if after-before != 25 {
		t.Errorf("expected 25s of waits, got %v", after-before)
	}
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}
