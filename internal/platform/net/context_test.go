package net_test

import (
	"context"
	"testing"

	pnet "opscreen/internal/platform/net"
)

func TestWithRequest_And_Getters(t *testing.T) {
	base := context.Background()

	t.Run("sets both ids", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "req-123", "corr-abc")

		if got := pnet.RequestID(ctx); got != "req-123" {
			t.Fatalf("RequestID got %q want %q", got, "req-123")
		}
		if got := pnet.CorrelationID(ctx); got != "corr-abc" {
			t.Fatalf("CorrelationID got %q want %q", got, "corr-abc")
		}
	})

	t.Run("sets only request id", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "r-only", "")

		if got := pnet.RequestID(ctx); got != "r-only" {
			t.Fatalf("RequestID got %q want %q", got, "r-only")
		}
		if got := pnet.CorrelationID(ctx); got != "" {
			t.Fatalf("CorrelationID got %q want empty", got)
		}
	})

	t.Run("sets only correlation id", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "", "c-only")

		if got := pnet.RequestID(ctx); got != "" {
			t.Fatalf("RequestID got %q want empty", got)
		}
		if got := pnet.CorrelationID(ctx); got != "c-only" {
			t.Fatalf("CorrelationID got %q want %q", got, "c-only")
		}
	})

	t.Run("no ids returns same ctx and empty getters", func(t *testing.T) {
		ctx := pnet.WithRequest(base, "", "")

		// should be the same reference since nothing was set
		if ctx != base {
			t.Fatalf("expected ctx to be unchanged when both ids empty")
		}
		if got := pnet.RequestID(ctx); got != "" {
			t.Fatalf("RequestID got %q want empty", got)
		}
		if got := pnet.CorrelationID(ctx); got != "" {
			t.Fatalf("CorrelationID got %q want empty", got)
		}
	})
}

func TestWithUser_And_Getters(t *testing.T) {
	base := context.Background()

	t.Run("sets id and role", func(t *testing.T) {
		ctx := pnet.WithUser(base, "u-1", "admin")

		if got := pnet.UserID(ctx); got != "u-1" {
			t.Fatalf("UserID got %q want %q", got, "u-1")
		}
		if got := pnet.UserRole(ctx); got != "admin" {
			t.Fatalf("UserRole got %q want %q", got, "admin")
		}
	})

	t.Run("empty values leave ctx unchanged", func(t *testing.T) {
		ctx := pnet.WithUser(base, "", "")
		if ctx != base {
			t.Fatalf("expected ctx to be unchanged when both values empty")
		}
		if got := pnet.UserID(ctx); got != "" {
			t.Fatalf("UserID got %q want empty", got)
		}
		if got := pnet.UserRole(ctx); got != "" {
			t.Fatalf("UserRole got %q want empty", got)
		}
	})
}
