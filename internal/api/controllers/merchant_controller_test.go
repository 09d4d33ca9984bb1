package controllers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ovoz/internal/models/db_models"
	"ovoz/internal/repositories"
	"ovoz/internal/services"
	"ovoz/pkg/paycom"
)

const (
	merchantKey  = "test-merchant-key"
	merchantPath = "/merchant/paycom"
	allowedIP    = "185.234.113.2"
)

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *paycom.Error   `json:"error"`
	ID     *int64          `json:"id"`
}

func newMerchantRouter(t *testing.T) (*gin.Engine, *repositories.MemoryMerchantStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repositories.NewMemoryMerchantStore()
	store.SeedAccount(db_models.Account{
		BaseModel: db_models.BaseModel{ID: uuid.New()},
		MemberID:  "100001",
		Email:     "talaba@example.uz",
	})
	store.SeedPlan(db_models.Plan{
		BaseModel:  db_models.BaseModel{ID: uuid.New()},
		Code:       "starter",
		Name:       "Starter",
		Period:     db_models.PeriodMonth,
		PriceMinor: 9900000,
		Currency:   "UZS",
		IsActive:   true,
	})

	svc := services.NewMerchantService(store, services.MerchantConfig{}, zap.NewNop())
	auth := paycom.NewAuthenticator(paycom.AuthConfig{Key: merchantKey})
	ctrl := NewMerchantController(svc, auth, zap.NewNop())

	r := gin.New()
	r.POST(merchantPath, ctrl.Handle)
	return r, store
}

func merchantAuth(key string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("Paycom:"+key))
}

func postRPC(t *testing.T, r *gin.Engine, ip, authorization, body string) (*httptest.ResponseRecorder, rpcEnvelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, merchantPath, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env rpcEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestMerchantEndpointAuth(t *testing.T) {
	t.Run("unlisted source address", func(t *testing.T) {
		r, _ := newMerchantRouter(t)
		body := `{"id":7,"method":"CheckPerformTransaction","params":{"amount":9900000,"account":{"user_id":"100001","plan_id":"starter","package_id":"0"}}}`

		w, env := postRPC(t, r, "203.0.113.5", merchantAuth(merchantKey), body)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Error)
		require.Equal(t, -32504, env.Error.Code)
		require.NotNil(t, env.ID)
		require.EqualValues(t, 7, *env.ID)
	})

	t.Run("wrong key", func(t *testing.T) {
		r, _ := newMerchantRouter(t)
		body := `{"id":8,"method":"GetStatement","params":{"from":0,"to":1}}`

		w, env := postRPC(t, r, allowedIP, merchantAuth("wrong"), body)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Error)
		require.Equal(t, -32504, env.Error.Code)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		r, _ := newMerchantRouter(t)
		body := `{"id":9,"method":"GetStatement","params":{"from":0,"to":1}}`

		w, env := postRPC(t, r, allowedIP, "", body)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Error)
		require.Equal(t, -32504, env.Error.Code)
	})
}

func TestMerchantEndpointEnvelope(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		r, _ := newMerchantRouter(t)

		w, env := postRPC(t, r, allowedIP, merchantAuth(merchantKey), `{"id":1,`)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Error)
		require.Equal(t, -32700, env.Error.Code)
		require.Nil(t, env.ID)
	})

	t.Run("missing method", func(t *testing.T) {
		r, _ := newMerchantRouter(t)

		w, env := postRPC(t, r, allowedIP, merchantAuth(merchantKey), `{"id":2,"params":{}}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Error)
		require.Equal(t, -32600, env.Error.Code)
	})

	t.Run("unknown method", func(t *testing.T) {
		r, _ := newMerchantRouter(t)

		w, env := postRPC(t, r, allowedIP, merchantAuth(merchantKey), `{"id":3,"method":"TransferFunds","params":{}}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Error)
		require.Equal(t, -32601, env.Error.Code)
		require.Equal(t, "TransferFunds", env.Error.Data)
	})

	t.Run("error messages carry three languages", func(t *testing.T) {
		r, _ := newMerchantRouter(t)

		_, env := postRPC(t, r, allowedIP, merchantAuth(merchantKey), `{"id":4,"method":"Nope","params":{}}`)
		require.NotNil(t, env.Error)
		require.NotEmpty(t, env.Error.Message.RU)
		require.NotEmpty(t, env.Error.Message.UZ)
		require.NotEmpty(t, env.Error.Message.EN)
	})
}

func TestMerchantEndpointDispatch(t *testing.T) {
	t.Run("check perform allows a priced order", func(t *testing.T) {
		r, _ := newMerchantRouter(t)
		body := `{"id":5,"method":"CheckPerformTransaction","params":{"amount":9900000,"account":{"user_id":"100001","plan_id":"starter","package_id":"0"}}}`

		w, env := postRPC(t, r, allowedIP, merchantAuth(merchantKey), body)
		require.Equal(t, http.StatusOK, w.Code)
		require.Nil(t, env.Error)
		require.NotNil(t, env.ID)
		require.EqualValues(t, 5, *env.ID)

		var res paycom.CheckPerformResult
		require.NoError(t, json.Unmarshal(env.Result, &res))
		require.True(t, res.Allow)
	})

	t.Run("business errors ride HTTP 200", func(t *testing.T) {
		r, _ := newMerchantRouter(t)
		body := `{"id":6,"method":"CheckPerformTransaction","params":{"amount":5000000,"account":{"user_id":"100001","plan_id":"starter","package_id":"0"}}}`

		w, env := postRPC(t, r, allowedIP, merchantAuth(merchantKey), body)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Error)
		require.Equal(t, -31001, env.Error.Code)
	})

	t.Run("create then check round-trips the snapshot", func(t *testing.T) {
		r, _ := newMerchantRouter(t)
		create := `{"id":10,"method":"CreateTransaction","params":{"id":"abc123","time":1700000000000,"amount":9900000,"account":{"user_id":"100001","plan_id":"starter","package_id":"0"}}}`

		_, env := postRPC(t, r, allowedIP, merchantAuth(merchantKey), create)
		require.Nil(t, env.Error)

		var created paycom.CreateResult
		require.NoError(t, json.Unmarshal(env.Result, &created))
		require.Equal(t, paycom.StateCreated, created.State)
		require.NotEmpty(t, created.Transaction)

		_, env = postRPC(t, r, allowedIP, merchantAuth(merchantKey),
			`{"id":11,"method":"CheckTransaction","params":{"id":"abc123"}}`)
		require.Nil(t, env.Error)

		var checked paycom.CheckResult
		require.NoError(t, json.Unmarshal(env.Result, &checked))
		require.Equal(t, created.Transaction, checked.Transaction)
		require.Equal(t, created.CreateTime, checked.CreateTime)
		require.Zero(t, checked.PerformTime)
	})
}
