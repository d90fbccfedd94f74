package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if jobsTotal == nil || emailsFoundTotal == nil || derivedJobsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservers(t *testing.T) {
	Init()
	before := testutil.ToFloat64(jobsTotal.WithLabelValues("completed"))
	ObserveJob("bing", "completed", 2*time.Second)
	if got := testutil.ToFloat64(jobsTotal.WithLabelValues("completed")); got != before+1 {
		t.Errorf("expected completed jobs to grow by 1, got %f -> %f", before, got)
	}

	beforeEmails := testutil.ToFloat64(emailsFoundTotal.WithLabelValues("test-engine"))
	ObserveEmails("test-engine", 3)
	ObserveEmails("test-engine", 0)
	if got := testutil.ToFloat64(emailsFoundTotal.WithLabelValues("test-engine")); got != beforeEmails+3 {
		t.Errorf("expected emails to grow by 3, got %f -> %f", beforeEmails, got)
	}

	beforeDerived := testutil.ToFloat64(derivedJobsTotal)
	ObserveDerivedJobs(2)
	if got := testutil.ToFloat64(derivedJobsTotal); got != beforeDerived+2 {
		t.Errorf("expected derived jobs to grow by 2, got %f -> %f", beforeDerived, got)
	}

	beforeActive := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	DecActiveWorkers()
	if got := testutil.ToFloat64(activeWorkers); got != beforeActive {
		t.Errorf("expected active workers to return to %f, got %f", beforeActive, got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
