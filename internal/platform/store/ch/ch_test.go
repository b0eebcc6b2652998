package ch

import (
	"context"
	"strings"
	"testing"
)

// TestOpen_BadDSN rejects malformed URLs before dialing
func TestOpen_BadDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{URL: "://bad"})
	if err == nil {
		t.Fatalf("Open expected DSN error, got nil")
	}
	if !strings.Contains(err.Error(), "ch dsn") {
		t.Fatalf("Open error = %q, want ch dsn wrap", err.Error())
	}
}

// zero-value and nil receivers fail loudly instead of panicking
func TestNilConnection_Guards(t *testing.T) {
	t.Parallel()

	cl := &CH{}
	ctx := context.Background()

	if err := cl.Insert(ctx, "screening_events", [][]any{{1}}); err == nil {
		t.Fatalf("Insert expected nil-connection error")
	}
	if _, err := cl.Query(ctx, "SELECT 1"); err == nil {
		t.Fatalf("Query expected nil-connection error")
	}
	if err := cl.Ping(ctx); err == nil {
		t.Fatalf("Ping expected nil-connection error")
	}
	if err := cl.Close(); err != nil {
		t.Fatalf("Close on zero value returned error: %v", err)
	}

	var nilCl *CH
	if err := nilCl.Close(); err != nil {
		t.Fatalf("Close on nil receiver returned error: %v", err)
	}
}

// TestBuildClientInfo carries role and tag as products, trimmed
func TestBuildClientInfo(t *testing.T) {
	t.Parallel()

	ci := BuildClientInfo(" worker ", "v1.2.3")
	if len(ci.Products) == 0 {
		t.Fatalf("expected products, got none")
	}
	seen := map[string]string{}
	for _, p := range ci.Products {
		seen[p.Name] = p.Version
	}
	if seen["role"] != "worker" {
		t.Fatalf("role product = %q, want %q", seen["role"], "worker")
	}
	if seen["opscreen"] != "v1.2.3" {
		t.Fatalf("tag product = %q, want %q", seen["opscreen"], "v1.2.3")
	}
	if seen["go"] == "" {
		t.Fatalf("go version product missing")
	}
}
