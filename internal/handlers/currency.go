package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/currency"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/response"
)

// CurrencyHandler exposes the exchange-rate table.
type CurrencyHandler struct {
	converter *currency.Converter
}

// NewCurrencyHandler constructs a CurrencyHandler.
func NewCurrencyHandler(converter *currency.Converter) (*CurrencyHandler, error) {
	if converter == nil {
		return nil, errors.New("currency handler: converter is required")
	}
	return &CurrencyHandler{converter: converter}, nil
}

// GET /api/currency/rates
func (h *CurrencyHandler) Rates(c *gin.Context) {
	payload := gin.H{
		"base":      currency.Base,
		"rates":     h.converter.Rates(),
		"supported": h.converter.Supported(),
	}
	if updated := h.converter.LastUpdated(); !updated.IsZero() {
		payload["lastUpdated"] = updated
	}
	response.Success(c, http.StatusOK, payload)
}

// GET /api/currency/convert?amount=&from=&to=
func (h *CurrencyHandler) Convert(c *gin.Context) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(c.Query("amount")), 64)
	if err != nil {
		response.Error(c, apperrors.NewValidationFailed("amount must be a number"))
		return
	}
	from := strings.ToUpper(strings.TrimSpace(c.DefaultQuery("from", "JPY")))
	to := strings.ToUpper(strings.TrimSpace(c.DefaultQuery("to", currency.Base)))

	converted, err := h.converter.Convert(amount, from, to)
	if err != nil {
		if errors.Is(err, currency.ErrUnsupportedCurrency) {
			response.Error(c, apperrors.NewValidationFailed("Unsupported currency"))
			return
		}
		respondError(c, err)
		return
	}
	rate, err := h.converter.Rate(from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"amount":    amount,
		"from":      from,
		"to":        to,
		"rate":      rate,
		"result":    converted,
		"formatted": currency.Format(converted, to),
	})
}
