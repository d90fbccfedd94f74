package harvest

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJobValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"valid", Job{Engine: "bing", Domain: "example.com", Limit: 10}, false},
		{"missing engine", Job{Domain: "example.com", Limit: 10}, true},
		{"missing domain", Job{Engine: "bing", Limit: 10}, true},
		{"zero limit", Job{Engine: "bing", Domain: "example.com"}, true},
		{"negative limit", Job{Engine: "bing", Domain: "example.com", Limit: -1}, true},
		{"slash in domain", Job{Engine: "bing", Domain: "a.com/../../etc", Limit: 1}, true},
		{"backslash in domain", Job{Engine: "bing", Domain: `a.com\x`, Limit: 1}, true},
		{"dot dot domain", Job{Engine: "bing", Domain: "..", Limit: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.job.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidJobList)
		})
	}
}

func TestOutcomeDurationIsDerived(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := Outcome{StartTime: start, EndTime: start.Add(90 * time.Second)}
	require.Equal(t, 90*time.Second, out.Duration())
}

func TestOutcomeMarshalJSON(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := Outcome{
		Job:       Job{Engine: "bing", Domain: "example.com", Limit: 10, Greedy: true},
		Project:   "brave_turing_1234",
		Status:    JobStatusFailed,
		StartTime: start,
		EndTime:   start.Add(3*time.Second + 400*time.Millisecond),
		Err:       errors.New("boom"),
	}

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "bing", decoded["engine"])
	require.Equal(t, "example.com", decoded["domain"])
	require.NotContains(t, decoded, "modifier")
	require.Equal(t, "brave_turing_1234", decoded["project"])
	require.Equal(t, "2024-03-01 10:00:00", decoded["start_time"])
	require.Equal(t, "2024-03-01 10:00:03", decoded["end_time"])
	require.Equal(t, "3", decoded["duration"])
	require.Equal(t, "failed", decoded["status"])
	require.Equal(t, "boom", decoded["error"])
	results, ok := decoded["results"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, []any{}, results["emails"])
	require.EqualValues(t, 0, results["processed"])
}
