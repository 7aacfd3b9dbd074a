package handler

import (
	"github.com/dafibh/condo/condo-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Handlers groups every HTTP handler served by the API
type Handlers struct {
	Fund      *FundHandler
	Fee       *FeeHandler
	Expense   *ExpenseHandler
	Closing   *ClosingHandler
	WebSocket *WebSocketHandler
}

// BatchRoutes are the routes that work on a whole period at once. They share
// the tenant's smaller batch rate-limit budget.
var BatchRoutes = []string{
	"POST /api/v1/fees/generate",
	"POST /api/v1/fees/sweep",
	"POST /api/v1/closings",
	"POST /api/v1/closings/:id/report",
	"POST /api/v1/expenses/:id/receipt",
}

// RegisterRoutes sets up all API routes. Every /api/v1 route is authenticated
// and rate limited per tenant; /ws authenticates through its token parameter.
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, h Handlers) {
	api := e.Group("/api/v1")
	api.Use(authMiddleware.Authenticate())
	if rateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(rateLimiter, middleware.ClassifyRoutes(BatchRoutes...)))
	}

	// Fund account routes
	funds := api.Group("/funds")
	funds.GET("", h.Fund.GetFunds)
	funds.POST("/transfers", h.Fund.Transfer)
	funds.POST("/postings", h.Fund.Post)
	funds.GET("/movements", h.Fund.GetMovements)
	funds.GET("/reconciliation", h.Fund.Reconcile)
	funds.POST("/:kind/deactivate", h.Fund.DeactivateAccount)

	// Fee routes
	fees := api.Group("/fees")
	fees.POST("/generate", h.Fee.GenerateFees)
	fees.POST("/sweep", h.Fee.SweepOverdue)
	fees.GET("/summary", h.Fee.GetSummary)
	fees.POST("", h.Fee.CreateFee)
	fees.GET("", h.Fee.GetFees)
	fees.GET("/:id", h.Fee.GetFee)
	fees.POST("/:id/payments", h.Fee.RecordPayment)
	fees.DELETE("/:id", h.Fee.DeleteFee)

	// Expense routes
	expenses := api.Group("/expenses")
	expenses.POST("", h.Expense.CreateExpense)
	expenses.GET("", h.Expense.GetExpenses)
	expenses.GET("/:id", h.Expense.GetExpense)
	expenses.PUT("/:id", h.Expense.UpdateExpense)
	expenses.DELETE("/:id", h.Expense.DeleteExpense)
	expenses.POST("/:id/receipt", h.Expense.UploadReceipt)

	// Closing routes
	closings := api.Group("/closings")
	closings.POST("", h.Closing.ClosePeriod)
	closings.GET("", h.Closing.GetClosings)
	closings.GET("/:id", h.Closing.GetClosing)
	closings.POST("/:id/report", h.Closing.GenerateReport)
	closings.GET("/:id/artifacts", h.Closing.GetArtifacts)

	if h.WebSocket != nil {
		e.GET("/ws", h.WebSocket.HandleWS)
	}
}
