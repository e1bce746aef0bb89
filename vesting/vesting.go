// Package vesting computes how many purchased tokens a participant is owed
// and how many of them have unlocked at a given time.
//
// The schedule is an initial unlock of VestingInitial parts per million at
// WindowEnd followed by a linear release of the remainder over Duration
// seconds.
package vesting

import (
	"errors"

	"github.com/Thorstarter/thorstarter-terra/core/types"
)

// PPM is 100% expressed in parts per million.
const PPM = 1_000_000

var (
	ErrZeroDuration   = errors.New("vesting: zero duration")
	ErrZeroDivisor    = errors.New("vesting: zero divisor")
	ErrInitialTooHigh = errors.New("vesting: initial unlock above 100%")
)

var ppm = types.NewAmount(PPM)

// Params describes one participant's position in a finalized sale.
type Params struct {
	Contributed    types.Amount // native currency attributed to the wallet
	OfferingAmount types.Amount // tokens on offer for the whole sale
	Divisor        types.Amount // raising cap or realized total, see sale.Divisor
	WindowEnd      uint64       // unix seconds when vesting starts
	InitialPPM     types.Amount
	Duration       uint64 // seconds from WindowEnd to full unlock
}

// Validate reports configuration errors that would make Compute divide by
// zero or release more than owed.
func (p Params) Validate() error {
	switch {
	case p.Duration == 0:
		return ErrZeroDuration
	case p.Divisor.IsZero():
		return ErrZeroDivisor
	case p.InitialPPM.Gt(ppm):
		return ErrInitialTooHigh
	}
	return nil
}

// Owed returns Contributed * OfferingAmount / Divisor, floored.
func Owed(contributed, offering, divisor types.Amount) (types.Amount, error) {
	if divisor.IsZero() {
		return types.Amount{}, ErrZeroDivisor
	}
	return contributed.MulDiv(offering, divisor)
}

// Compute returns the tokens owed for the position and the portion unlocked
// at now:
//
//	claimable = owed*initial/1e6 + (owed*(1e6-initial)/1e6) * progress / duration
//
// where progress = min(now - WindowEnd, Duration), saturating at zero. Each
// product is formed in 256 bits and floored once, in that order. Once
// progress reaches Duration the whole of owed is claimable, so the two
// floors of the split never strand a unit.
func Compute(p Params, now uint64) (owed, claimable types.Amount, err error) {
	if err := p.Validate(); err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	owed, err = Owed(p.Contributed, p.OfferingAmount, p.Divisor)
	if err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	progress := Progress(p.WindowEnd, p.Duration, now)
	if progress == p.Duration {
		return owed, owed, nil
	}
	initial, err := owed.MulDiv(p.InitialPPM, ppm)
	if err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	rest, err := owed.MulDiv(ppm.SaturatingSub(p.InitialPPM), ppm)
	if err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	linear, err := rest.MulDiv(types.NewAmount(progress), types.NewAmount(p.Duration))
	if err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	claimable, err = initial.Add(linear)
	if err != nil {
		return types.Amount{}, types.Amount{}, err
	}
	return owed, claimable, nil
}

// Progress returns the elapsed vesting seconds at now, clamped to
// [0, duration].
func Progress(windowEnd, duration, now uint64) uint64 {
	if now <= windowEnd {
		return 0
	}
	return min(now-windowEnd, duration)
}
