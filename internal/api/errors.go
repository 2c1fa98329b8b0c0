package api

import (
	"errors"
	"net/http"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gin-gonic/gin"

	"github.com/lagrangedao/go-computing-market/internal/market"
	"github.com/lagrangedao/go-computing-market/util"
)

type errorMapping struct {
	target error
	status int
	code   int
}

var errorMappings = []errorMapping{
	{market.ErrProviderNotFound, http.StatusNotFound, util.ProviderNotFound},
	{market.ErrJobNotFound, http.StatusNotFound, util.JobNotFound},
	{market.ErrUnauthorized, http.StatusForbidden, util.Unauthorized},
	{market.ErrInvalidJobState, http.StatusConflict, util.InvalidJobState},
	{market.ErrProviderNotActive, http.StatusConflict, util.ProviderNotActive},
	{market.ErrInvalidProviderData, http.StatusBadRequest, util.InvalidProviderData},
	{market.ErrNoPayment, http.StatusBadRequest, util.NoPayment},
	{market.ErrInvalidAddress, http.StatusBadRequest, util.InvalidAddress},
	{market.ErrInvalidConfig, http.StatusBadRequest, util.InvalidConfig},
	{market.ErrProviderAlreadyRegistered, http.StatusConflict, util.ProviderExists},
	{market.ErrCancelWindowExpired, http.StatusConflict, util.CancelWindowExpired},
	{market.ErrContractPaused, http.StatusServiceUnavailable, util.MarketPaused},
	{market.ErrNotInitialized, http.StatusServiceUnavailable, util.MarketNotInitialized},
	{market.ErrArithmetic, http.StatusInternalServerError, util.ArithmeticError},
	{market.ErrInsufficientBalance, http.StatusBadRequest, util.InsufficientBalance},
	{market.ErrDuplicateDeposit, http.StatusConflict, util.DuplicateDeposit},
	{market.ErrInvalidDeposit, http.StatusBadRequest, util.BadParamError},
	{market.ErrReplayedRequest, http.StatusUnauthorized, util.SignatureError},
}

// errorCode maps a market error to its HTTP status and business code.
func errorCode(err error) (int, int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, util.ServerError
}

func writeError(c *gin.Context, err error) {
	status, code := errorCode(err)
	if status == http.StatusInternalServerError {
		logs.GetLogger().Errorf("request %s %s failed, request_id: %s, error: %+v",
			c.Request.Method, c.FullPath(), c.GetString(requestIDKey), err)
	}
	c.AbortWithStatusJSON(status, util.CreateErrorResponse(code, err.Error()))
}

func badRequest(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, util.CreateErrorResponse(code, err.Error()))
}
