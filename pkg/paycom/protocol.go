package paycom

import "encoding/json"

// State is the provider-visible transaction state.
type State int

const (
	StateCreated                State = 1
	StateCompleted              State = 2
	StateCancelled              State = -1
	StateCancelledAfterComplete State = -2
)

// Active reports whether a transaction in this state still occupies its
// order. At most one active transaction may exist per order.
func (s State) Active() bool {
	return s == StateCreated || s == StateCompleted
}

// CancelReason codes fixed by the provider contract.
type CancelReason int

const (
	ReasonRecipientNotFound CancelReason = 1
	ReasonDebitFailed       CancelReason = 2
	ReasonExecutionFailed   CancelReason = 3
	ReasonTimeout           CancelReason = 4
	ReasonRefund            CancelReason = 5
	ReasonUnknown           CancelReason = 10
)

// Method names of the merchant API surface.
const (
	MethodCheckPerformTransaction = "CheckPerformTransaction"
	MethodCreateTransaction       = "CreateTransaction"
	MethodPerformTransaction      = "PerformTransaction"
	MethodCancelTransaction       = "CancelTransaction"
	MethodCheckTransaction        = "CheckTransaction"
	MethodGetStatement            = "GetStatement"
)

// Request is the inbound JSON-RPC envelope. Params stay raw until the
// method is known.
type Request struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is the outbound envelope. The endpoint always answers
// HTTP 200 with either Result or Error set, never both.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
	ID     *int64 `json:"id"`
}

// Account identifies what is being purchased and for whom. Exactly one
// of PlanID/PackageID carries a catalog code; the other is the literal "0".
type Account struct {
	UserID    string `json:"user_id"`
	PlanID    string `json:"plan_id"`
	PackageID string `json:"package_id"`
}

type CheckPerformParams struct {
	Amount  int64   `json:"amount"`
	Account Account `json:"account"`
}

type CreateParams struct {
	ID      string  `json:"id"`
	Time    int64   `json:"time"`
	Amount  int64   `json:"amount"`
	Account Account `json:"account"`
}

type PerformParams struct {
	ID string `json:"id"`
}

type CancelParams struct {
	ID     string       `json:"id"`
	Reason CancelReason `json:"reason"`
}

type StatementParams struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type CheckPerformResult struct {
	Allow bool `json:"allow"`
}

type CreateResult struct {
	CreateTime  int64  `json:"create_time"`
	Transaction string `json:"transaction"`
	State       State  `json:"state"`
}

type PerformResult struct {
	Transaction string `json:"transaction"`
	PerformTime int64  `json:"perform_time"`
	State       State  `json:"state"`
}

type CancelResult struct {
	Transaction string `json:"transaction"`
	CancelTime  int64  `json:"cancel_time"`
	State       State  `json:"state"`
}

type CheckResult struct {
	CreateTime  int64         `json:"create_time"`
	PerformTime int64         `json:"perform_time"`
	CancelTime  int64         `json:"cancel_time"`
	Transaction string        `json:"transaction"`
	State       State         `json:"state"`
	Reason      *CancelReason `json:"reason"`
}

// StatementEntry mirrors CheckResult plus the identifying fields the
// provider needs to match its own ledger.
type StatementEntry struct {
	ID          string        `json:"id"`
	Time        int64         `json:"time"`
	Amount      int64         `json:"amount"`
	Account     Account       `json:"account"`
	CreateTime  int64         `json:"create_time"`
	PerformTime int64         `json:"perform_time"`
	CancelTime  int64         `json:"cancel_time"`
	Transaction string        `json:"transaction"`
	State       State         `json:"state"`
	Reason      *CancelReason `json:"reason"`
}

type StatementResult struct {
	Transactions []StatementEntry `json:"transactions"`
}
