// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// JournalCallbackHandler defines the endpoints the journal engine calls after
// posting or removing a journal entry.
type JournalCallbackHandler interface {
	ProcessEntryLine(c *gin.Context)
	ProcessJournalEntry(c *gin.Context)
	DeleteJournalEntryMovements(c *gin.Context)
}

// RegisterReadHandler defines the company scoped read endpoints of a register.
type RegisterReadHandler interface {
	ListBalances(c *gin.Context)
	GetBalance(c *gin.Context)
	RecalculateBalance(c *gin.Context)
	GetAverageCost(c *gin.Context)
	GetCorrections(c *gin.Context)
	PublishCorrections(c *gin.Context)
	ListMovements(c *gin.Context)
	VerifyBalances(c *gin.Context)
	RepairBalances(c *gin.Context)
}

// RegisterJournalCallbackRoutes registers the processing endpoints of a register.
//
// Usage:
//
//	handler := handlers.NewQuantityHandler(baseHandler, service)
//	RegisterJournalCallbackRoutes(v1.Group("/quantity"), handler)
func RegisterJournalCallbackRoutes(group *gin.RouterGroup, handler JournalCallbackHandler) {
	group.POST("/entry-lines/:id/process", handler.ProcessEntryLine)
	group.POST("/journal-entries/:id/process", handler.ProcessJournalEntry)
	group.DELETE("/journal-entries/:id/movements", handler.DeleteJournalEntryMovements)
}

// RegisterReadRoutes registers balance, movement and verification endpoints.
// The group must carry middleware.Company.
func RegisterReadRoutes(group *gin.RouterGroup, handler RegisterReadHandler) {
	group.GET("/balances", handler.ListBalances)
	group.GET("/balances/:accountId", handler.GetBalance)
	group.POST("/balances/:accountId/recalculate", handler.RecalculateBalance)
	group.GET("/accounts/:accountId/average-cost", handler.GetAverageCost)
	group.GET("/accounts/:accountId/corrections", handler.GetCorrections)
	group.POST("/accounts/:accountId/corrections/publish", handler.PublishCorrections)
	group.GET("/movements", handler.ListMovements)
	group.GET("/verify", handler.VerifyBalances)
	group.POST("/repair", handler.RepairBalances)
}
