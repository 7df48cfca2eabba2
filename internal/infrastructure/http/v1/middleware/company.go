package middleware

import (
	"github.com/gin-gonic/gin"

	"spcledger/internal/core/apperror"
	appctx "spcledger/internal/core/context"
	"spcledger/internal/core/id"
)

// CompanyHeader is the HTTP header that scopes a request to one company.
const CompanyHeader = "X-Company-ID"

// Company middleware resolves the company from X-Company-ID and stores it in
// the request context. Every read endpoint of the sub-ledger is company scoped.
func Company() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(CompanyHeader)
		if raw == "" {
			_ = c.Error(apperror.NewMissingCompany().WithDetail("header", CompanyHeader))
			c.Abort()
			return
		}

		companyID, err := id.Parse(raw)
		if err != nil || id.IsNil(companyID) {
			_ = c.Error(
				apperror.NewInvalidInput(CompanyHeader, "expected a UUID").
					WithDetail("value", raw),
			)
			c.Abort()
			return
		}

		ctx := appctx.WithCompany(c.Request.Context(), companyID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("company_id", companyID)

		c.Next()
	}
}
