package types

import (
	"encoding/json"
	"fmt"
)

// Divisor selects the denominator used to convert a contribution into owed
// tokens.
type Divisor uint8

const (
	// DivisorRaising divides by the configured raising cap.
	DivisorRaising Divisor = iota
	// DivisorTotal divides by the realised total contributed.
	DivisorTotal
)

func (d Divisor) String() string {
	switch d {
	case DivisorRaising:
		return "raising"
	case DivisorTotal:
		return "total"
	default:
		return fmt.Sprintf("divisor(%d)", uint8(d))
	}
}

// ParseDivisor parses "raising" or "total".
func ParseDivisor(s string) (Divisor, error) {
	switch s {
	case "raising", "":
		return DivisorRaising, nil
	case "total":
		return DivisorTotal, nil
	}
	return 0, fmt.Errorf("unknown divisor %q", s)
}

func (d Divisor) MarshalJSON() ([]byte, error) {
	if d > DivisorTotal {
		return nil, fmt.Errorf("unknown divisor %d", uint8(d))
	}
	return json.Marshal(d.String())
}

func (d *Divisor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseDivisor(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// SaleConfig is the owner-controlled part of the sale state. configure
// replaces it wholesale.
type SaleConfig struct {
	Token           string  `json:"token"`
	StartTime       uint64  `json:"start_time"`
	EndTime         uint64  `json:"end_time"`
	EndWithdrawTime uint64  `json:"end_withdraw_time"`
	RaisingAmount   Amount  `json:"raising_amount"`
	OfferingAmount  Amount  `json:"offering_amount"`
	VestingInitial  Amount  `json:"vesting_initial"`
	VestingTime     uint64  `json:"vesting_time"`
	MerkleRoot      string  `json:"merkle_root"`
	Finalized       bool    `json:"finalized"`
	Divisor         Divisor `json:"divisor"`
}

// HasWithdrawWindow reports whether deposits are followed by a withdraw
// window rather than a first-come-first-served round.
func (c *SaleConfig) HasWithdrawWindow() bool { return c.EndWithdrawTime != 0 }

// VestingStart is the time the linear release is measured from.
func (c *SaleConfig) VestingStart() uint64 {
	if c.HasWithdrawWindow() {
		return c.EndWithdrawTime
	}
	return c.EndTime
}

// SaleState is the singleton record of a sale.
type SaleState struct {
	Owner        string
	Config       SaleConfig
	TotalUsers   uint64
	TotalAmount  Amount
	TotalClaimed Amount
}

// UserState is one participant's ledger entry. The zero value is the state
// of a wallet that never deposited.
type UserState struct {
	Amount  Amount `json:"amount"`
	Claimed Amount `json:"claimed"`
}
