package sale

import "github.com/Thorstarter/thorstarter-terra/core/types"

// Phase is the sale stage implied by the configuration and a clock reading.
type Phase uint8

const (
	PhaseNotConfigured Phase = iota
	PhasePreSale
	PhaseDepositOpen
	PhaseWithdrawOpen
	PhaseFcfsOpen
	PhaseClosed
	PhaseFinalized
)

var phaseNames = [...]string{
	PhaseNotConfigured: "not_configured",
	PhasePreSale:       "pre_sale",
	PhaseDepositOpen:   "deposit_open",
	PhaseWithdrawOpen:  "withdraw_open",
	PhaseFcfsOpen:      "fcfs_open",
	PhaseClosed:        "closed",
	PhaseFinalized:     "finalized",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// PhaseAt derives the phase at now. Finalized takes precedence over the
// clock.
func PhaseAt(cfg *types.SaleConfig, now uint64) Phase {
	switch {
	case cfg.Finalized:
		return PhaseFinalized
	case !configured(cfg):
		return PhaseNotConfigured
	case now < cfg.StartTime:
		return PhasePreSale
	case now <= cfg.EndTime:
		return PhaseDepositOpen
	case !cfg.HasWithdrawWindow():
		return PhaseFcfsOpen
	case now <= cfg.EndWithdrawTime:
		return PhaseWithdrawOpen
	default:
		return PhaseClosed
	}
}

func configured(cfg *types.SaleConfig) bool {
	return cfg.StartTime != 0 && cfg.MerkleRoot != ""
}
