package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ovoz/internal/services"
	"ovoz/pkg/paycom"
)

// MerchantController is the payment provider's entry point: one POST
// route speaking JSON-RPC. Whatever happens inside, the response is
// HTTP 200 with either a result or a protocol error object; the
// provider treats any other status as a transport failure and retries.
type MerchantController struct {
	merchantService services.MerchantService
	auth            *paycom.Authenticator
	logger          *zap.Logger
}

func NewMerchantController(merchantService services.MerchantService, auth *paycom.Authenticator, logger *zap.Logger) *MerchantController {
	return &MerchantController{
		merchantService: merchantService,
		auth:            auth,
		logger:          logger,
	}
}

// Handle godoc
// @Summary Paycom merchant API endpoint
// @Description JSON-RPC surface the payment provider calls
// @Tags Merchant
// @Accept json
// @Produce json
// @Router /merchant/paycom [post]
func (m *MerchantController) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		m.respondError(c, nil, "", paycom.ErrParse)
		return
	}

	var req paycom.Request
	if err := json.Unmarshal(body, &req); err != nil {
		m.respondError(c, nil, "", paycom.ErrParse)
		return
	}

	clientIP := paycom.ClientIP(c.GetHeader("X-Forwarded-For"), c.Request.RemoteAddr)
	if ok, reason := m.auth.Allow(c.GetHeader("Authorization"), clientIP); !ok {
		m.logger.Warn("merchant request rejected",
			zap.String("ip", clientIP),
			zap.String("reason", reason))
		m.respondError(c, req.ID, req.Method, paycom.ErrInsufficientPrivilege)
		return
	}

	if req.Method == "" || len(req.Params) == 0 {
		m.respondError(c, req.ID, req.Method, paycom.ErrInvalidRequest)
		return
	}

	result, err := m.dispatch(c, req)
	if err != nil {
		var pe *paycom.Error
		if !errors.As(err, &pe) {
			m.logger.Error("merchant method failed",
				zap.String("method", req.Method),
				zap.Error(err))
			pe = paycom.ErrInternal
		}
		m.respondError(c, req.ID, req.Method, pe)
		return
	}

	c.JSON(http.StatusOK, paycom.Response{Result: result, ID: req.ID})
}

func (m *MerchantController) dispatch(c *gin.Context, req paycom.Request) (any, error) {
	ctx := c.Request.Context()

	switch req.Method {
	case paycom.MethodCheckPerformTransaction:
		var p paycom.CheckPerformParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, paycom.ErrInvalidRequest
		}
		return m.merchantService.CheckPerformTransaction(ctx, p)

	case paycom.MethodCreateTransaction:
		var p paycom.CreateParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, paycom.ErrInvalidRequest
		}
		return m.merchantService.CreateTransaction(ctx, p)

	case paycom.MethodPerformTransaction:
		var p paycom.PerformParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, paycom.ErrInvalidRequest
		}
		return m.merchantService.PerformTransaction(ctx, p)

	case paycom.MethodCancelTransaction:
		var p paycom.CancelParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, paycom.ErrInvalidRequest
		}
		return m.merchantService.CancelTransaction(ctx, p)

	case paycom.MethodCheckTransaction:
		var p paycom.PerformParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, paycom.ErrInvalidRequest
		}
		return m.merchantService.CheckTransaction(ctx, p)

	case paycom.MethodGetStatement:
		var p paycom.StatementParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, paycom.ErrInvalidRequest
		}
		return m.merchantService.GetStatement(ctx, p)
	}

	return nil, paycom.ErrMethodNotFound.WithData(req.Method)
}

func (m *MerchantController) respondError(c *gin.Context, id *int64, method string, pe *paycom.Error) {
	if pe.IsBusiness() {
		m.logger.Warn("merchant method rejected",
			zap.String("method", method),
			zap.Int("code", pe.Code),
			zap.String("data", pe.Data))
	} else {
		m.logger.Error("merchant protocol error",
			zap.String("method", method),
			zap.Int("code", pe.Code))
	}
	c.JSON(http.StatusOK, paycom.Response{Error: pe, ID: id})
}
