package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sentrapay/riskengine/internal/fraud"
	"github.com/sentrapay/riskengine/internal/logging"
)

// evaluateRequest is the input contract for one evaluation. Amounts are
// decimal strings so binary floating point never touches the values.
type evaluateRequest struct {
	UserID        string `json:"userId" binding:"required"`
	Type          string `json:"type" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	RecipientID   string `json:"recipientId"`
	Timestamp     string `json:"timestamp"` // RFC 3339; defaults to now
	WalletBalance string `json:"walletBalance"`

	// Record appends the transaction to the ledger after evaluation, so
	// it counts toward the user's future history. Defaults to true.
	Record *bool `json:"record"`
}

func (s *Server) evaluateHandler(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": err.Error()})
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		ts, err = time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_timestamp", "message": err.Error()})
			return
		}
	}

	var uc *fraud.UserContext
	if req.WalletBalance != "" {
		balance, err := decimal.NewFromString(req.WalletBalance)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_wallet_balance", "message": err.Error()})
			return
		}
		uc = &fraud.UserContext{WalletBalance: &balance}
	}

	tx := fraud.Transaction{
		UserID:      req.UserID,
		Type:        fraud.TransactionType(req.Type),
		Amount:      amount,
		RecipientID: req.RecipientID,
		Timestamp:   ts,
	}

	assessment := s.engine.Evaluate(c.Request.Context(), tx, uc)

	// Append the evaluated transaction to the ledger after the decision
	// is made. Blocked transactions never settle, so they are recorded
	// as failed; everything else settles as completed.
	if (req.Record == nil || *req.Record) && !assessment.Degraded {
		status := fraud.StatusCompleted
		if assessment.Action == fraud.ActionBlock {
			status = fraud.StatusFailed
		}
		if err := s.history.RecordTransaction(c.Request.Context(), tx, status); err != nil {
			logging.L(c.Request.Context()).Error("record transaction failed",
				"user_id", tx.UserID, "error", err)
		}
	}

	c.JSON(http.StatusOK, assessment)
}

func (s *Server) listEvaluationsHandler(c *gin.Context) {
	userID := c.Param("userId")

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = n
	}

	records, err := s.sink.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("list assessments failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": userID, "assessments": records})
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	healthy, statuses := s.checks.CheckAll(c.Request.Context())
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"healthy": healthy, "checks": statuses})
}
