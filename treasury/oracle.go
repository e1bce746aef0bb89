// oracle.go provides the tax rate and per-denomination tax cap lookup used
// when native currency leaves a sale. Rates are fixed-point values with 18
// fractional digits, so a 0.35% rate is 3_500_000_000_000_000.
package treasury

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Thorstarter/thorstarter-terra/core/types"
)

// RateDecimals is the number of fractional digits in a tax rate.
const RateDecimals = 18

var (
	// DecimalFraction is 1.0 in rate units.
	DecimalFraction = types.NewAmount(1_000_000_000_000_000_000)

	ErrInvalidRate = errors.New("treasury: invalid tax rate")
)

// TaxOracle answers the current tax rate and the cap for a denomination.
type TaxOracle interface {
	TaxRate() (types.Amount, error)
	TaxCap(denom string) (types.Amount, error)
}

// ParseRate converts a decimal string such as "0.0035" to rate units.
// Rates of 1.0 and above are rejected.
func ParseRate(s string) (types.Amount, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" && frac == "" {
		return types.Amount{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	if whole == "" {
		whole = "0"
	}
	if strings.Trim(whole, "0") != "" {
		return types.Amount{}, fmt.Errorf("%w: %q is not below 1", ErrInvalidRate, s)
	}
	if len(frac) > RateDecimals {
		return types.Amount{}, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidRate, s, RateDecimals)
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return types.Amount{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
		}
	}
	digits := strings.TrimLeft(frac+strings.Repeat("0", RateDecimals-len(frac)), "0")
	if digits == "" {
		return types.Amount{}, nil
	}
	rate, err := types.ParseAmount(digits)
	if err != nil {
		return types.Amount{}, fmt.Errorf("%w: %v", ErrInvalidRate, err)
	}
	return rate, nil
}

// FormatRate renders a rate as a decimal string, the inverse of ParseRate.
func FormatRate(rate types.Amount) string {
	s := rate.String()
	if len(s) <= RateDecimals {
		s = strings.Repeat("0", RateDecimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-RateDecimals], strings.TrimRight(s[len(s)-RateDecimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// StaticOracleConfig configures a StaticOracle.
type StaticOracleConfig struct {
	Rate       string                  // Decimal tax rate, e.g. "0.0035".
	DefaultCap types.Amount            // Cap for denominations not in Caps.
	Caps       map[string]types.Amount // Per-denomination caps.
}

// StaticOracle serves a fixed rate and caps that the operator may replace
// at runtime. All methods are safe for concurrent use.
type StaticOracle struct {
	mu         sync.RWMutex
	rate       types.Amount
	defaultCap types.Amount
	caps       map[string]types.Amount
}

// NewStaticOracle validates cfg and returns an oracle serving it.
func NewStaticOracle(cfg StaticOracleConfig) (*StaticOracle, error) {
	rate, err := ParseRate(cfg.Rate)
	if err != nil {
		return nil, err
	}
	o := &StaticOracle{rate: rate, defaultCap: cfg.DefaultCap, caps: make(map[string]types.Amount, len(cfg.Caps))}
	for denom, c := range cfg.Caps {
		o.caps[denom] = c
	}
	return o, nil
}

// TaxRate returns the current rate.
func (o *StaticOracle) TaxRate() (types.Amount, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rate, nil
}

// TaxCap returns the cap for denom.
func (o *StaticOracle) TaxCap(denom string) (types.Amount, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if c, ok := o.caps[denom]; ok {
		return c, nil
	}
	return o.defaultCap, nil
}

// SetRate replaces the rate.
func (o *StaticOracle) SetRate(rate string) error {
	r, err := ParseRate(rate)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.rate = r
	o.mu.Unlock()
	return nil
}

// SetCap replaces the cap for denom.
func (o *StaticOracle) SetCap(denom string, c types.Amount) {
	o.mu.Lock()
	o.caps[denom] = c
	o.mu.Unlock()
}
