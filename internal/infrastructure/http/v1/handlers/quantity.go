package handlers

import (
	"github.com/gin-gonic/gin"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/entity"
	"spcledger/internal/domain/registers/quantity"
	"spcledger/internal/infrastructure/http/v1/dto"
)

// QuantityHandler handles HTTP requests for the quantity register.
type QuantityHandler struct {
	*BaseHandler
	service *quantity.Service
}

// NewQuantityHandler creates a new quantity register handler.
func NewQuantityHandler(base *BaseHandler, service *quantity.Service) *QuantityHandler {
	return &QuantityHandler{
		BaseHandler: base,
		service:     service,
	}
}

// --- Journal engine callbacks ---

// ProcessEntryLine handles POST /quantity/entry-lines/:id/process
func (h *QuantityHandler) ProcessEntryLine(c *gin.Context) {
	lineID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.ProcessEntryLine(c.Request.Context(), lineID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromResult(result))
}

// ProcessJournalEntry handles POST /quantity/journal-entries/:id/process
func (h *QuantityHandler) ProcessJournalEntry(c *gin.Context) {
	journalEntryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	results, err := h.service.ProcessJournalEntry(c.Request.Context(), journalEntryID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromResults(results), 0, 0))
}

// DeleteJournalEntryMovements handles DELETE /quantity/journal-entries/:id/movements
func (h *QuantityHandler) DeleteJournalEntryMovements(c *gin.Context) {
	journalEntryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	keys, err := h.service.DeleteMovementsByJournalEntryID(c.Request.Context(), journalEntryID)
	if err != nil {
		h.Error(c, err)
		return
	}

	accounts := make([]string, len(keys))
	for i, k := range keys {
		accounts[i] = k.AccountID.String()
	}
	h.OK(c, dto.DeleteMovementsResponse{
		JournalEntryID:       journalEntryID.String(),
		RecalculatedAccounts: accounts,
	})
}

// --- Company scoped reads ---

// key resolves the (company, :accountId) pair of the request.
func (h *QuantityHandler) key(c *gin.Context) (entity.AccountKey, bool) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return entity.AccountKey{}, false
	}
	accountID, ok := h.ParamID(c, "accountId")
	if !ok {
		return entity.AccountKey{}, false
	}
	return entity.AccountKey{CompanyID: companyID, AccountID: accountID}, true
}

// ListBalances handles GET /quantity/balances
func (h *QuantityHandler) ListBalances(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.BalanceListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	accountIDs, ok := h.IDs(c, "accountId", req.AccountIDs)
	if !ok {
		return
	}

	balances, err := h.service.ListBalances(c.Request.Context(), companyID, quantity.BalanceFilter{
		AccountIDs:  accountIDs,
		ExcludeZero: req.ExcludeZero,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromBalances(balances), 0, 0))
}

// GetBalance handles GET /quantity/balances/:accountId
func (h *QuantityHandler) GetBalance(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBalance(balance))
}

// RecalculateBalance handles POST /quantity/balances/:accountId/recalculate
func (h *QuantityHandler) RecalculateBalance(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}

	balance, err := h.service.RecalculateBalance(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBalance(balance))
}

// GetAverageCost handles GET /quantity/accounts/:accountId/average-cost?date=
func (h *QuantityHandler) GetAverageCost(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	date, ok := h.OptionalDate(c, "date", c.Query("date"))
	if !ok {
		return
	}

	snapshot, err := h.service.AverageCostAsOf(c.Request.Context(), key, date)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSnapshot(snapshot))
}

// GetCorrections handles GET /quantity/accounts/:accountId/corrections?since=
// It re-runs detection for an entry dated since; nothing is published.
func (h *QuantityHandler) GetCorrections(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	since, ok := h.Date(c, "since", c.Query("since"))
	if !ok {
		return
	}

	corrections, err := h.service.CheckRetroactiveCorrections(c.Request.Context(), key, since)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromCorrections(corrections), 0, 0))
}

// PublishCorrections handles POST /quantity/accounts/:accountId/corrections/publish?since=
// It re-runs detection and hands the result to the correction sink, for a
// journal engine that missed the corrections returned on append.
func (h *QuantityHandler) PublishCorrections(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	since, ok := h.Date(c, "since", c.Query("since"))
	if !ok {
		return
	}

	corrections, err := h.service.DetectAndPublish(c.Request.Context(), key, since)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromCorrections(corrections), 0, 0))
}

// ListMovements handles GET /quantity/movements
func (h *QuantityHandler) ListMovements(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	var req dto.MovementListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filter := quantity.MovementFilter{
		CompanyID: companyID,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}
	if filter.AccountID, ok = h.OptionalID(c, "accountId", req.AccountID); !ok {
		return
	}
	if filter.FromDate, ok = h.OptionalDate(c, "fromDate", req.FromDate); !ok {
		return
	}
	if filter.ToDate, ok = h.OptionalDate(c, "toDate", req.ToDate); !ok {
		return
	}
	if req.Type != "" {
		t := entity.MovementType(req.Type)
		if !t.Valid() {
			h.Error(c, apperror.NewInvalidInput("type", "expected RECEIPT or ISSUE"))
			return
		}
		filter.Type = &t
	}

	movements, err := h.service.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromMovements(movements), filter.Limit, filter.Offset))
}

// --- Verification ---

// VerifyBalances handles GET /quantity/verify
func (h *QuantityHandler) VerifyBalances(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}

	drifts, err := h.service.VerifyBalances(c.Request.Context(), companyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromDrifts(drifts), 0, 0))
}

// RepairBalances handles POST /quantity/repair: verify, then recalculate every drifted balance.
func (h *QuantityHandler) RepairBalances(c *gin.Context) {
	companyID, ok := h.CompanyID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	drifts, err := h.service.VerifyBalances(ctx, companyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.RepairBalances(ctx, drifts); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromDrifts(drifts), 0, 0))
}
