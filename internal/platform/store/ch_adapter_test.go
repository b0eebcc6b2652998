package store

import (
	"context"
	"strings"
	"testing"

	"opscreen/internal/platform/store/ch"
)

func TestCHAdapter_Insert_RejectsUnsupportedShape(t *testing.T) {
	t.Parallel()

	a := newCHAdapter(&ch.CH{})
	err := a.Insert(context.Background(), "screening_events", struct{}{})
	if err == nil || !strings.Contains(err.Error(), "unsupported CH insert shape") {
		t.Fatalf("expected shape error, got %v", err)
	}
}

func TestCHAdapter_Insert_DelegatesToClient(t *testing.T) {
	t.Parallel()

	// zero client carries no connection; the delegated call must surface its error
	a := newCHAdapter(&ch.CH{})
	err := a.Insert(context.Background(), "screening_events", [][]any{{1, "acme"}})
	if err == nil || !strings.Contains(err.Error(), "nil connection") {
		t.Fatalf("expected delegated nil-connection error, got %v", err)
	}
}

func TestCHAdapter_Query_PropagatesClientError(t *testing.T) {
	t.Parallel()

	a := newCHAdapter(&ch.CH{})
	if _, err := a.Query(context.Background(), "SELECT 1"); err == nil {
		t.Fatalf("expected error from disconnected client")
	}
}

func TestCHAdapter_Ping_NilInner(t *testing.T) {
	t.Parallel()

	a := &clickhouseAdapter{}
	if err := a.Ping(context.Background()); err == nil {
		t.Fatalf("expected error for nil inner client")
	}
}
