package telemetry

import "testing"

func TestParseSampleRate_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("OTEL_TRACE_SAMPLE_RATE", "")
	if got := parseSampleRate(); got != 0.1 {
		t.Fatalf("expected default 0.1, got %v", got)
	}
}

func TestParseSampleRate_ParsesValidValue(t *testing.T) {
	t.Setenv("OTEL_TRACE_SAMPLE_RATE", "0.5")
	if got := parseSampleRate(); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestParseSampleRate_FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("OTEL_TRACE_SAMPLE_RATE", "not-a-number")
	if got := parseSampleRate(); got != 0.1 {
		t.Fatalf("expected fallback to 0.1, got %v", got)
	}
}

func TestParseSampleRate_FallsBackWhenOutOfRange(t *testing.T) {
	t.Setenv("OTEL_TRACE_SAMPLE_RATE", "1.5")
	if got := parseSampleRate(); got != 0.1 {
		t.Fatalf("expected fallback to 0.1 for out-of-range value, got %v", got)
	}

	t.Setenv("OTEL_TRACE_SAMPLE_RATE", "-0.1")
	if got := parseSampleRate(); got != 0.1 {
		t.Fatalf("expected fallback to 0.1 for negative value, got %v", got)
	}
}
