package bridge

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/bridgegate/internal/currency"
	"github.com/mbd888/bridgegate/internal/federation"
	"github.com/mbd888/bridgegate/internal/logging"
)

// Handler exposes the gateway-to-gateway bridge payment API.
type Handler struct {
	quotes   *QuoteService
	payments *PaymentService
	status   *StatusService
}

func NewHandler(quotes *QuoteService, payments *PaymentService, status *StatusService) *Handler {
	return &Handler{quotes: quotes, payments: payments, status: status}
}

// RegisterRoutes mounts the bridge payment endpoints.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/v1/bridge_payments")
	v1.GET("/quotes/:sender/:receiver/:amount", h.GetQuotes)
	v1.POST("/", h.PostPayment)
	v1.GET("/status/:id", h.GetStatus)
}

// GetQuotes handles GET /v1/bridge_payments/quotes/:sender/:receiver/:amount.
func (h *Handler) GetQuotes(c *gin.Context) {
	quotes, err := h.quotes.BuildBridgeQuotes(
		c.Request.Context(),
		c.Param("sender"),
		c.Param("receiver"),
		c.Param("amount"),
	)
	if err != nil {
		h.fail(c, err)
		return
	}

	if quotes == nil {
		quotes = []*BridgePayment{}
	}
	c.JSON(http.StatusOK, Envelope{Success: true, BridgePayments: quotes})
}

// PostPayment handles POST /v1/bridge_payments/. The body carries exactly
// one payment to accept.
func (h *Handler) PostPayment(c *gin.Context) {
	var body struct {
		BridgePayments []*BridgePayment `json:"bridge_payments"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Envelope{
			Success: false,
			Errors:  []string{"malformed request body"},
		})
		return
	}
	if len(body.BridgePayments) != 1 {
		c.JSON(http.StatusBadRequest, Envelope{
			Success: false,
			Errors:  []string{"bridge_payments must contain exactly one payment"},
		})
		return
	}

	accepted, err := h.payments.AcceptQuote(c.Request.Context(), body.BridgePayments[0])
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Envelope{Success: true, BridgePayments: []*BridgePayment{accepted}})
}

// GetStatus handles GET /v1/bridge_payments/status/:id.
func (h *Handler) GetStatus(c *gin.Context) {
	tx, err := h.status.PaymentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"errors":  []string{err.Error()},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"errors":  []string{"internal error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"gateway_transaction": tx,
	})
}

// fail writes the error envelope. Validation, role, and remote-coordination
// failures are the caller's problem; everything else is opaque.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case isCallerError(err):
		c.JSON(http.StatusBadRequest, Envelope{
			Success: false,
			Errors:  []string{err.Error()},
		})
	default:
		logging.L(c.Request.Context()).Error("bridge request failed",
			"path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, Envelope{
			Success: false,
			Errors:  []string{"internal error"},
		})
	}
}

func isCallerError(err error) bool {
	for _, caller := range []error{
		federation.ErrInvalidAddress,
		federation.ErrInvalidSenderAddress,
		federation.ErrInvalidReceiverAddress,
		currency.ErrMissingAmount,
		currency.ErrAmountFormat,
		currency.ErrInvalidAmount,
		currency.ErrMissingCurrency,
		currency.ErrInvalidCurrency,
		ErrNotOnThisGateway,
		ErrUserNotFound,
		ErrRemoteQuoteFailed,
		ErrRemoteHandoffFailed,
	} {
		if errors.Is(err, caller) {
			return true
		}
	}
	return false
}
