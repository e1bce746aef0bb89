package sale

import (
	"fmt"

	"github.com/Thorstarter/thorstarter-terra/core/types"
)

// InstantiateMsg creates the sale. Config is optional.
type InstantiateMsg struct {
	Config *types.SaleConfig `json:"config,omitempty"`
}

// ExecuteMsg is the state-changing message surface. Exactly one field is
// set, e.g. {"deposit":{"allocation":"75000000","proof":[...]}}.
type ExecuteMsg struct {
	Configure     *types.SaleConfig `json:"configure,omitempty"`
	Deposit       *DepositMsg       `json:"deposit,omitempty"`
	DepositFcfs   *DepositMsg       `json:"deposit_fcfs,omitempty"`
	Withdraw      *WithdrawMsg      `json:"withdraw,omitempty"`
	Harvest       *struct{}         `json:"harvest,omitempty"`
	Collect       *struct{}         `json:"collect,omitempty"`
	CollectTokens *AmountMsg        `json:"collect_tokens,omitempty"`
	Migrate       *MigrateMsg       `json:"migrate,omitempty"`
}

type DepositMsg struct {
	Allocation types.Amount `json:"allocation"`
	Proof      []string     `json:"proof"`
}

// WithdrawMsg withdraws Amount, or the whole balance when it is omitted.
type WithdrawMsg struct {
	Amount *types.Amount `json:"amount,omitempty"`
}

type AmountMsg struct {
	Amount types.Amount `json:"amount"`
}

type MigrateMsg struct {
	NewContract string `json:"new_contract"`
}

// Action returns the snake_case name of the operation msg selects, or "" if
// it selects none.
func (m *ExecuteMsg) Action() string {
	names, _ := m.set()
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

func (m *ExecuteMsg) set() ([]string, int) {
	var names []string
	add := func(ok bool, name string) {
		if ok {
			names = append(names, name)
		}
	}
	add(m.Configure != nil, "configure")
	add(m.Deposit != nil, "deposit")
	add(m.DepositFcfs != nil, "deposit_fcfs")
	add(m.Withdraw != nil, "withdraw")
	add(m.Harvest != nil, "harvest")
	add(m.Collect != nil, "collect")
	add(m.CollectTokens != nil, "collect_tokens")
	add(m.Migrate != nil, "migrate")
	return names, len(names)
}

// Validate checks exactly one operation is selected.
func (m *ExecuteMsg) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: empty message", ErrInvalidMessage)
	}
	names, n := m.set()
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: no operation", ErrInvalidMessage)
	default:
		return fmt.Errorf("%w: several operations %v", ErrInvalidMessage, names)
	}
}

// QueryMsg is the read-only message surface.
type QueryMsg struct {
	State     *struct{}       `json:"state,omitempty"`
	UserState *UserStateQuery `json:"user_state,omitempty"`
	Phase     *PhaseQuery     `json:"phase,omitempty"`
	Users     *UsersQuery     `json:"users,omitempty"`
}

type UserStateQuery struct {
	User string `json:"user"`
	Now  uint64 `json:"now"`
}

type PhaseQuery struct {
	Now uint64 `json:"now"`
}

// UsersQuery pages through the ledger in address order.
type UsersQuery struct {
	StartAfter string `json:"start_after,omitempty"`
	Limit      uint32 `json:"limit,omitempty"`
}

// StateResponse is the aggregate view of the sale.
type StateResponse struct {
	Owner           string        `json:"owner"`
	Token           string        `json:"token"`
	StartTime       uint64        `json:"start_time"`
	EndTime         uint64        `json:"end_time"`
	EndWithdrawTime uint64        `json:"end_withdraw_time"`
	RaisingAmount   types.Amount  `json:"raising_amount"`
	OfferingAmount  types.Amount  `json:"offering_amount"`
	VestingInitial  types.Amount  `json:"vesting_initial"`
	VestingTime     uint64        `json:"vesting_time"`
	MerkleRoot      string        `json:"merkle_root"`
	Finalized       bool          `json:"finalized"`
	Divisor         types.Divisor `json:"divisor"`
	TotalUsers      uint64        `json:"total_users"`
	TotalAmount     types.Amount  `json:"total_amount"`
	TotalClaimed    types.Amount  `json:"total_claimed"`
}

type UserStateResponse struct {
	Amount    types.Amount `json:"amount"`
	Claimed   types.Amount `json:"claimed"`
	Owed      types.Amount `json:"owed"`
	Claimable types.Amount `json:"claimable"`
}

type PhaseResponse struct {
	Phase string `json:"phase"`
	Now   uint64 `json:"now"`
}

type UserEntryResponse struct {
	Address string       `json:"address"`
	Amount  types.Amount `json:"amount"`
	Claimed types.Amount `json:"claimed"`
}

type UsersResponse struct {
	Users []UserEntryResponse `json:"users"`
}
