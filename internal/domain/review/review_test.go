package review

import "testing"

func TestJobStatusTransitions(t *testing.T) {
	cases := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobPending, JobRunning, true},
		{JobPending, JobFailed, true},
		{JobPending, JobCompleted, false},
		{JobRunning, JobCompleted, true},
		{JobRunning, JobFailed, true},
		{JobRunning, JobPending, false},
		{JobCompleted, JobRunning, false},
		{JobCompleted, JobFailed, false},
		{JobFailed, JobRunning, false},
		{JobFailed, JobCompleted, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseSource(t *testing.T) {
	if s, err := ParseSource(" Amazon "); err != nil || s != SourceAmazon {
		t.Fatalf("ParseSource(Amazon) = %v, %v", s, err)
	}
	if _, err := ParseSource("ebay"); err == nil {
		t.Fatal("ParseSource(ebay) should fail")
	}
}

func TestNormalizeIntensity(t *testing.T) {
	if e, ok := NormalizeIntensity("HIGH"); !ok || e != IntensityHigh {
		t.Fatalf("NormalizeIntensity(HIGH) = %v, %v", e, ok)
	}
	if e, ok := NormalizeIntensity("extreme"); ok || e != IntensityMedium {
		t.Fatalf("NormalizeIntensity(extreme) = %v, %v", e, ok)
	}
}
