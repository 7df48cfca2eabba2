package context

import (
	"context"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/id"
)

type companyContextKey struct{}

// WithCompany scopes ctx to a company. All ledger reads and writes are company scoped.
func WithCompany(ctx context.Context, companyID id.ID) context.Context {
	return context.WithValue(ctx, companyContextKey{}, companyID)
}

// GetCompanyID returns the company from context, if any.
func GetCompanyID(ctx context.Context) (id.ID, bool) {
	v, ok := ctx.Value(companyContextKey{}).(id.ID)
	if !ok || id.IsNil(v) {
		return id.Nil(), false
	}
	return v, true
}

// MustCompanyID returns the company from context or a MISSING_COMPANY error.
func MustCompanyID(ctx context.Context) (id.ID, error) {
	if v, ok := GetCompanyID(ctx); ok {
		return v, nil
	}
	return id.Nil(), apperror.NewMissingCompany()
}
