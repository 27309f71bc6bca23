package env

import "testing"

func TestGetFallsBack(t *testing.T) {
	t.Setenv("PF_TEST_PORT", "")
	if got := Get("PF_TEST_PORT", "8080"); got != "8080" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("PF_TEST_PORT", "9090")
	if got := Get("PF_TEST_PORT", "8080"); got != "9090" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestFirstOf(t *testing.T) {
	t.Setenv("PF_TEST_A", "")
	t.Setenv("PF_TEST_B", "web.1")
	if got := FirstOf("local", "PF_TEST_A", "PF_TEST_B"); got != "web.1" {
		t.Fatalf("expected second key, got %q", got)
	}
	t.Setenv("PF_TEST_B", "")
	if got := FirstOf("local", "PF_TEST_A", "PF_TEST_B"); got != "local" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
