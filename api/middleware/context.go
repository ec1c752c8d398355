package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxClientID contextKey = "client_id"
	ctxBrandID  contextKey = "brand_id"
)

// ClientIDFromContext returns the authenticated client identity, or uuid.Nil
// when the request carried none.
func ClientIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxClientID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// BrandIDFromContext returns the brand scope of the request, or uuid.Nil.
func BrandIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxBrandID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithClientID injects the client identifier into the context.
func WithClientID(ctx context.Context, clientID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClientID, clientID)
}

// WithBrandID injects the brand identifier into the context.
func WithBrandID(ctx context.Context, brandID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxBrandID, brandID)
}
