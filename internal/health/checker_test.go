package health

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.String(); got != tt.expected {
				t.Errorf("Status.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   Status
	}{
		{"healthy", Healthy("msg"), StatusHealthy},
		{"degraded", Degraded("msg"), StatusDegraded},
		{"unhealthy", Unhealthy("msg"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Status != tt.want {
				t.Errorf("Status = %v, want %v", tt.result.Status, tt.want)
			}
			if tt.result.Message != "msg" {
				t.Errorf("Message = %q, want %q", tt.result.Message, "msg")
			}
			if tt.result.Details == nil {
				t.Error("Details should be initialized")
			}
		})
	}
}

func TestResultChaining(t *testing.T) {
	result := Healthy("data list readable").
		WithDetail("path", "/data/HIR1B_latest").
		WithDetail("entries", 42).
		WithLatency(50 * time.Millisecond)

	if result.Latency != 50*time.Millisecond {
		t.Errorf("Latency = %v, want %v", result.Latency, 50*time.Millisecond)
	}
	if val, ok := result.Details["path"].(string); !ok || val != "/data/HIR1B_latest" {
		t.Errorf("Details[path] = %v", result.Details["path"])
	}
	if val, ok := result.Details["entries"].(int); !ok || val != 42 {
		t.Errorf("Details[entries] = %v, want 42", result.Details["entries"])
	}
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Degraded("directory does not exist yet"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"status":"degraded"`) {
		t.Errorf("JSON = %s, want status degraded", got)
	}
	if strings.Contains(got, "details") {
		t.Errorf("JSON = %s, empty details should be omitted", got)
	}
}
