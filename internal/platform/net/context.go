// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const (
	keyCorrelationID ctxKey = "correlation_id"
	keyUserID        ctxKey = "user_id"
	keyUserRole      ctxKey = "user_role"
)

// WithRequest annotates context with common request scoped ids
func WithRequest(ctx context.Context, reqID, correlationID string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if correlationID != "" {
		ctx = context.WithValue(ctx, keyCorrelationID, correlationID)
	}
	return ctx
}

// WithUser annotates context with the authenticated user id and role
func WithUser(ctx context.Context, userID, role string) context.Context {
	if userID != "" {
		ctx = context.WithValue(ctx, keyUserID, userID)
	}
	if role != "" {
		ctx = context.WithValue(ctx, keyUserRole, role)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// CorrelationID returns the correlation id on the context if present
func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(keyCorrelationID).(string); ok {
		return v
	}
	return ""
}

// UserID returns the user id on the context if present
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(keyUserID).(string); ok {
		return v
	}
	return ""
}

// UserRole returns the authenticated role on the context if present
func UserRole(ctx context.Context) string {
	if v, ok := ctx.Value(keyUserRole).(string); ok {
		return v
	}
	return ""
}
