package ux

import (
	"strings"
	"testing"
)

func TestField(t *testing.T) {
	got := Field("Satellite", "metop-b")
	if !strings.Contains(got, "Satellite:") || !strings.HasSuffix(got, "metop-b") {
		t.Errorf("Field() = %q", got)
	}
}

func TestCount(t *testing.T) {
	if got := Count(0, false); got != "0" {
		t.Errorf("Count(0) = %q, want plain 0", got)
	}
	if got := Count(3, true); !strings.Contains(got, "3") {
		t.Errorf("Count(3, true) = %q", got)
	}
	if got := Count(2, false); !strings.Contains(got, "2") {
		t.Errorf("Count(2, false) = %q", got)
	}
}
