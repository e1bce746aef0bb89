package sale

import (
	"encoding/json"
	"fmt"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
)

const (
	DefaultUsersLimit = 10
	MaxUsersLimit     = 30
)

// QueryState returns the sale singleton.
func (c *Contract) QueryState(db rawdb.Reader) (*StateResponse, error) {
	st, err := loadState(db)
	if err != nil {
		return nil, err
	}
	cfg := st.Config
	return &StateResponse{
		Owner:           st.Owner,
		Token:           cfg.Token,
		StartTime:       cfg.StartTime,
		EndTime:         cfg.EndTime,
		EndWithdrawTime: cfg.EndWithdrawTime,
		RaisingAmount:   cfg.RaisingAmount,
		OfferingAmount:  cfg.OfferingAmount,
		VestingInitial:  cfg.VestingInitial,
		VestingTime:     cfg.VestingTime,
		MerkleRoot:      cfg.MerkleRoot,
		Finalized:       cfg.Finalized,
		Divisor:         cfg.Divisor,
		TotalUsers:      st.TotalUsers,
		TotalAmount:     st.TotalAmount,
		TotalClaimed:    st.TotalClaimed,
	}, nil
}

// QueryUserState returns user's entry with owed and claimable computed at
// now. Wallets without an entry report zeros. owed and claimable are zero
// while the vesting schedule is incomplete.
func (c *Contract) QueryUserState(db rawdb.Reader, user string, now uint64) (*UserStateResponse, error) {
	st, err := loadState(db)
	if err != nil {
		return nil, err
	}
	addr, err := c.canonical(user)
	if err != nil {
		return nil, err
	}
	entry, _, err := rawdb.ReadUserState(db, addr)
	if err != nil {
		return nil, err
	}
	resp := &UserStateResponse{Amount: entry.Amount, Claimed: entry.Claimed}
	if owed, claimable, err := positionVesting(st, entry.Amount, now); err == nil {
		resp.Owed, resp.Claimable = owed, claimable
	}
	return resp, nil
}

// QueryPhase returns the phase at now.
func (c *Contract) QueryPhase(db rawdb.Reader, now uint64) (*PhaseResponse, error) {
	st, err := loadState(db)
	if err != nil {
		return nil, err
	}
	return &PhaseResponse{Phase: PhaseAt(&st.Config, now).String(), Now: now}, nil
}

// QueryUsers pages through the ledger. limit 0 means DefaultUsersLimit and
// larger values are clamped to MaxUsersLimit.
func (c *Contract) QueryUsers(db rawdb.Reader, startAfter string, limit uint32) (*UsersResponse, error) {
	if _, err := loadState(db); err != nil {
		return nil, err
	}
	n := int(limit)
	if n == 0 {
		n = DefaultUsersLimit
	}
	n = min(n, MaxUsersLimit)
	entries, err := Users(db, startAfter, n)
	if err != nil {
		return nil, err
	}
	resp := &UsersResponse{Users: make([]UserEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Users = append(resp.Users, UserEntryResponse{Address: e.Address, Amount: e.State.Amount, Claimed: e.State.Claimed})
	}
	return resp, nil
}

// Query dispatches msg and returns the JSON encoded answer.
func (c *Contract) Query(db rawdb.Reader, msg *QueryMsg) (json.RawMessage, error) {
	var (
		resp any
		err  error
		n    int
	)
	if msg != nil {
		for _, set := range []bool{msg.State != nil, msg.UserState != nil, msg.Phase != nil, msg.Users != nil} {
			if set {
				n++
			}
		}
	}
	if n != 1 {
		return nil, fmt.Errorf("%w: want exactly one query, got %d", ErrInvalidMessage, n)
	}
	switch {
	case msg.State != nil:
		resp, err = c.QueryState(db)
	case msg.UserState != nil:
		resp, err = c.QueryUserState(db, msg.UserState.User, msg.UserState.Now)
	case msg.Phase != nil:
		resp, err = c.QueryPhase(db, msg.Phase.Now)
	case msg.Users != nil:
		resp, err = c.QueryUsers(db, msg.Users.StartAfter, msg.Users.Limit)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}
