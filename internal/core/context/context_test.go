package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/id"
)

func TestCompanyContext(t *testing.T) {
	ctx := context.Background()

	_, err := MustCompanyID(ctx)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeMissingScope, appErr.Code)

	company := id.New()
	got, err := MustCompanyID(WithCompany(ctx, company))
	require.NoError(t, err)
	assert.Equal(t, company, got)

	_, ok = GetCompanyID(WithCompany(ctx, id.Nil()))
	assert.False(t, ok)
}

func TestTraceContext(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		incoming  string
		wantTrace string
	}{
		{name: "incoming trace id kept", requestID: "req-1", incoming: "abc", wantTrace: "abc"},
		{name: "generated ids", requestID: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := NewTraceContext(tt.requestID, trace.SpanContext{}, tt.incoming)
			ctx := WithTrace(context.Background(), tc)

			assert.NotEmpty(t, GetRequestID(ctx))
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, GetRequestID(ctx))
			}
			if tt.wantTrace != "" {
				assert.Equal(t, tt.wantTrace, GetTraceID(ctx))
			}
			assert.Equal(t, tc.TraceID, GetTraceID(ctx))
			assert.Equal(t, OriginHTTP, GetOrigin(ctx))
		})
	}

	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetOrigin(context.Background()))
}

func TestNewJobTrace(t *testing.T) {
	ctx := WithTrace(context.Background(), NewJobTrace(OriginVerifier))
	assert.Equal(t, OriginVerifier, GetOrigin(ctx))
	assert.Contains(t, GetRequestID(ctx), "verifier-")
	assert.NotEmpty(t, GetTraceID(ctx))
}
