package observability

import (
	"testing"
)

func TestHeadersParsing(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer x, bad, =v,k=")
	got := headers()
	if len(got) != 1 || got["authorization"] != "Bearer x" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestSampleRatioClamps(t *testing.T) {
	cases := map[string]float64{"": 1, "0.25": 0.25, "7": 1, "-1": 0, "junk": 1}
	for raw, want := range cases {
		t.Setenv("OTEL_SAMPLER_RATIO", raw)
		if got := sampleRatio(); got != want {
			t.Errorf("sampleRatio(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestEnabled(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "Yes")
	if !Enabled() {
		t.Fatal("expected enabled")
	}
	t.Setenv("OTEL_ENABLED", "0")
	if Enabled() {
		t.Fatal("expected disabled")
	}
}
