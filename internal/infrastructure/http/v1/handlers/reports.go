package handlers

import (
	"github.com/gin-gonic/gin"

	"spcledger/internal/domain/reports"
	"spcledger/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// GetQuantityTurnover handles GET /reports/quantity-turnover
func (h *ReportsHandler) GetQuantityTurnover(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.TurnoverReportRequest
	if !h.BindQuery(c, &req) {
		return
	}
	fromDate, ok := h.Date(c, "fromDate", req.FromDate)
	if !ok {
		return
	}
	toDate, ok := h.Date(c, "toDate", req.ToDate)
	if !ok {
		return
	}
	accountIDs, ok := h.IDs(c, "accountId", req.AccountIDs)
	if !ok {
		return
	}

	report, err := h.service.QuantityTurnover(c.Request.Context(), reports.TurnoverFilter{
		CompanyID:  companyID,
		FromDate:   fromDate,
		ToDate:     toDate,
		AccountIDs: accountIDs,
		Opening:    reports.OpeningMode(req.Opening),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTurnoverReport(report))
}
