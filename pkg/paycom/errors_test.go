package paycom

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	cases := map[*Error]int{
		ErrParse:                 -32700,
		ErrInvalidRequest:        -32600,
		ErrMethodNotFound:        -32601,
		ErrInternal:              -32400,
		ErrInsufficientPrivilege: -32504,
		ErrInvalidAmount:         -31001,
		ErrTransactionNotFound:   -31003,
		ErrUnableToCancel:        -31007,
		ErrUnableToPerform:       -31008,
		ErrUserNotFound:          -31050,
		ErrInvalidOrderType:      -31051,
		ErrPlanNotFound:          -31052,
		ErrPackageNotFound:       -31053,
		ErrOrderAlreadyPaid:      -31054,
		ErrOrderInProgress:       -31055,
		ErrInvalidAccount:        -31056,
	}
	for e, code := range cases {
		require.Equal(t, code, e.Code)
		require.NotEmpty(t, e.Message.RU)
		require.NotEmpty(t, e.Message.UZ)
		require.NotEmpty(t, e.Message.EN)
		require.Error(t, e)
	}
}

func TestErrorBands(t *testing.T) {
	require.False(t, ErrInternal.IsBusiness())
	require.False(t, ErrInsufficientPrivilege.IsBusiness())
	require.True(t, ErrInvalidAmount.IsBusiness())
	require.True(t, ErrOrderAlreadyPaid.IsBusiness())
}

func TestWithDataCopies(t *testing.T) {
	e := ErrInvalidAmount.WithData("amount")
	require.Equal(t, "amount", e.Data)
	require.Empty(t, ErrInvalidAmount.Data)
	require.Equal(t, ErrInvalidAmount.Code, e.Code)
}

func TestErrorJSONShape(t *testing.T) {
	raw, err := json.Marshal(ErrUserNotFound.WithData("user_id"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, float64(-31050), decoded["code"])
	require.Equal(t, "user_id", decoded["data"])

	msg, ok := decoded["message"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, msg, "ru")
	require.Contains(t, msg, "uz")
	require.Contains(t, msg, "en")
}
