package sale

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/crypto"
	"github.com/Thorstarter/thorstarter-terra/vesting"
)

// Contract is the sale state machine. It holds no state of its own; every
// call reads and writes the store it is given and returns the transfers it
// wants the host to make. A call that returns an error has written nothing
// the host should keep.
type Contract struct {
	opts Options
}

// New returns a contract running with opts.
func New(opts Options) (*Contract, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Contract{opts: opts}, nil
}

// Options returns the options the contract runs with.
func (c *Contract) Options() Options { return c.opts }

func (c *Contract) canonical(addr string) (string, error) {
	a, err := c.opts.Codec.Canonicalize(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return a, nil
}

// Instantiate creates the sale with the sender as owner. A nil cfg leaves
// the sale unconfigured; otherwise cfg is validated as by Configure and
// stored with Finalized cleared.
func (c *Contract) Instantiate(db rawdb.ReadWriter, env Env, cfg *types.SaleConfig) (*Response, error) {
	if ok, err := rawdb.HasSaleState(db); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInstantiated
	}
	owner, err := c.canonical(env.Sender)
	if err != nil {
		return nil, err
	}
	st := &types.SaleState{Owner: owner}
	if cfg != nil {
		next := *cfg
		next.Finalized = false
		if err := c.validateConfig(&next); err != nil {
			return nil, err
		}
		st.Config = next
	}
	if err := rawdb.WriteSaleState(db, st); err != nil {
		return nil, err
	}
	return newResponse("instantiate").add("owner", owner), nil
}

// Configure replaces the whole configuration. Only the owner may call it.
// Nothing stops the owner from reopening a closed window or rewinding the
// clock; the owner is trusted with the schedule.
func (c *Contract) Configure(db rawdb.ReadWriter, env Env, cfg types.SaleConfig) (*Response, error) {
	l, err := LoadLedger(db)
	if err != nil {
		return nil, err
	}
	st := l.State()
	if err := c.requireOwner(st, env.Sender); err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidConfig)
	}
	if err := c.validateConfig(&cfg); err != nil {
		return nil, err
	}
	if st.TotalUsers > 0 && cfg.Divisor != st.Config.Divisor {
		return nil, ErrDivisorLocked
	}
	st.Config = cfg
	if err := l.Save(); err != nil {
		return nil, err
	}
	return newResponse("configure").
		add("token", cfg.Token).
		addUint("start_time", cfg.StartTime).
		addUint("end_time", cfg.EndTime).
		addUint("end_withdraw_time", cfg.EndWithdrawTime).
		add("raising_amount", cfg.RaisingAmount.String()).
		add("offering_amount", cfg.OfferingAmount.String()).
		add("vesting_initial", cfg.VestingInitial.String()).
		addUint("vesting_time", cfg.VestingTime).
		add("merkle_root", cfg.MerkleRoot).
		add("finalized", strconv.FormatBool(cfg.Finalized)).
		add("divisor", cfg.Divisor.String()), nil
}

// validateConfig checks cfg and canonicalises its token address in place.
func (c *Contract) validateConfig(cfg *types.SaleConfig) error {
	if cfg.Token != "" {
		t, err := c.opts.Codec.Canonicalize(cfg.Token)
		if err != nil {
			return fmt.Errorf("%w: token: %v", ErrInvalidConfig, err)
		}
		cfg.Token = t
	}
	switch {
	case cfg.StartTime > cfg.EndTime:
		return fmt.Errorf("%w: start_time after end_time", ErrInvalidConfig)
	case cfg.EndWithdrawTime != 0 && cfg.EndWithdrawTime < cfg.EndTime:
		return fmt.Errorf("%w: end_withdraw_time before end_time", ErrInvalidConfig)
	case cfg.VestingInitial.Gt(types.NewAmount(vesting.PPM)):
		return fmt.Errorf("%w: vesting_initial above 1000000", ErrInvalidConfig)
	case cfg.Divisor > types.DivisorTotal:
		return fmt.Errorf("%w: unknown divisor", ErrInvalidConfig)
	}
	if cfg.MerkleRoot != "" {
		if _, err := types.ParseHash(cfg.MerkleRoot); err != nil {
			return fmt.Errorf("%w: merkle_root: %v", ErrInvalidConfig, err)
		}
	}
	if cfg.Finalized {
		if cfg.VestingTime == 0 {
			return fmt.Errorf("%w: finalized with zero vesting_time", ErrInvalidConfig)
		}
		if cfg.Divisor == types.DivisorRaising && cfg.RaisingAmount.IsZero() {
			return fmt.Errorf("%w: finalized with zero raising_amount", ErrInvalidConfig)
		}
	}
	return nil
}

func (c *Contract) requireOwner(st *types.SaleState, sender string) error {
	addr, err := c.canonical(sender)
	if err != nil {
		return err
	}
	if addr != st.Owner {
		return ErrUnauthorized
	}
	return nil
}

// contribution extracts the sale currency from the attached funds. Zero is
// checked before stray denominations.
func (c *Contract) contribution(funds types.Coins) (types.Amount, error) {
	amount := funds.AmountOf(c.opts.Denom)
	if amount.IsZero() {
		return types.Amount{}, ErrNoZeroAmount
	}
	if len(funds) > 1 {
		return types.Amount{}, ErrNoOtherDenoms
	}
	return amount, nil
}

func (c *Contract) verifyAllocation(cfg *types.SaleConfig, addr string, allocation types.Amount, proof []string) error {
	if err := crypto.VerifyProofHex(cfg.MerkleRoot, crypto.LeafInput(addr, allocation), proof); err != nil {
		return ErrInvalidMerkleProof
	}
	return nil
}

func withinRaisingCap(st *types.SaleState, amount types.Amount) error {
	total, err := st.TotalAmount.Add(amount)
	if err != nil {
		return ErrOverflow
	}
	if !st.Config.RaisingAmount.IsZero() && total.Gt(st.Config.RaisingAmount) {
		return ErrOverRaisingAmount
	}
	return nil
}

// Deposit contributes the attached funds during the deposit window. The
// wallet's cumulative contribution may not exceed the allocation committed
// to in the allowlist. A finalized sale takes no more funds: under the total
// divisor a late deposit would shrink what earlier wallets already claimed.
func (c *Contract) Deposit(db rawdb.ReadWriter, env Env, allocation types.Amount, proof []string) (*Response, error) {
	l, err := LoadLedger(db)
	if err != nil {
		return nil, err
	}
	st := l.State()
	if !configured(&st.Config) {
		return nil, ErrNotConfigured
	}
	if st.Config.Finalized {
		return nil, ErrAlreadyFinalized
	}
	if env.Now < st.Config.StartTime {
		return nil, ErrDepositNotStarted
	}
	if env.Now > st.Config.EndTime {
		return nil, ErrDepositEnded
	}
	sender, err := c.canonical(env.Sender)
	if err != nil {
		return nil, err
	}
	if err := c.verifyAllocation(&st.Config, sender, allocation, proof); err != nil {
		return nil, err
	}
	amount, err := c.contribution(env.Funds)
	if err != nil {
		return nil, err
	}
	if err := withinRaisingCap(st, amount); err != nil {
		return nil, err
	}
	entry, _, err := l.Entry(sender)
	if err != nil {
		return nil, err
	}
	if sum, err := entry.Amount.Add(amount); err != nil || sum.Gt(allocation) {
		return nil, ErrOverAllocation
	}
	if err := l.Credit(sender, amount); err != nil {
		return nil, err
	}
	return newResponse("deposit").add("user", sender).add("amount", amount.String()), nil
}

// DepositFcfs contributes after the deposit window in sales without a
// withdraw window. The allowlist still gates entry but the proven
// allocation is not enforced; each call is capped by FcfsWalletCap instead.
func (c *Contract) DepositFcfs(db rawdb.ReadWriter, env Env, allocation types.Amount, proof []string) (*Response, error) {
	l, err := LoadLedger(db)
	if err != nil {
		return nil, err
	}
	st := l.State()
	if !configured(&st.Config) {
		return nil, ErrNotConfigured
	}
	if st.Config.HasWithdrawWindow() {
		return nil, ErrFcfsDisabled
	}
	if st.Config.Finalized {
		return nil, ErrAlreadyFinalized
	}
	if env.Now <= st.Config.EndTime {
		return nil, ErrDepositFcfsNotStarted
	}
	sender, err := c.canonical(env.Sender)
	if err != nil {
		return nil, err
	}
	if err := c.verifyAllocation(&st.Config, sender, allocation, proof); err != nil {
		return nil, err
	}
	amount, err := c.contribution(env.Funds)
	if err != nil {
		return nil, err
	}
	if amount.Gt(c.opts.FcfsWalletCap) {
		return nil, ErrOverFcfsWalletCap
	}
	if err := withinRaisingCap(st, amount); err != nil {
		return nil, err
	}
	if err := l.Credit(sender, amount); err != nil {
		return nil, err
	}
	return newResponse("deposit_fcfs").add("user", sender).add("amount", amount.String()), nil
}

// Withdraw returns part or, when amount is nil, all of the sender's
// contribution during the withdraw window, minus the currency tax.
func (c *Contract) Withdraw(db rawdb.ReadWriter, env Env, amount *types.Amount) (*Response, error) {
	l, err := LoadLedger(db)
	if err != nil {
		return nil, err
	}
	st := l.State()
	if !st.Config.HasWithdrawWindow() {
		return nil, ErrWithdrawDisabled
	}
	if st.Config.Finalized {
		return nil, ErrAlreadyFinalized
	}
	if env.Now < st.Config.EndTime {
		return nil, ErrWithdrawNotStarted
	}
	if env.Now > st.Config.EndWithdrawTime {
		return nil, ErrWithdrawEnded
	}
	sender, err := c.canonical(env.Sender)
	if err != nil {
		return nil, err
	}
	entry, exists, err := l.Entry(sender)
	if err != nil {
		return nil, err
	}
	want := entry.Amount
	if amount != nil {
		want = *amount
	}
	if want.IsZero() {
		return nil, ErrNoZeroAmount
	}
	if !exists || entry.Amount.Lt(want) {
		return nil, ErrInsufficientBalance
	}
	if err := l.Debit(sender, want); err != nil {
		return nil, err
	}
	out, err := env.Treasury.DeductTax(types.Coin{Denom: c.opts.Denom, Amount: want})
	if err != nil {
		return nil, err
	}
	return newResponse("withdraw").
		add("user", sender).
		add("amount", want.String()).
		addIntent(Intent{Kind: IntentBankSend, Recipient: sender, Denom: out.Denom, Amount: out.Amount}), nil
}

func divisorOf(st *types.SaleState) types.Amount {
	if st.Config.Divisor == types.DivisorTotal {
		return st.TotalAmount
	}
	return st.Config.RaisingAmount
}

// positionVesting runs the vesting schedule for a contribution.
func positionVesting(st *types.SaleState, contributed types.Amount, now uint64) (owed, claimable types.Amount, err error) {
	return vesting.Compute(vesting.Params{
		Contributed:    contributed,
		OfferingAmount: st.Config.OfferingAmount,
		Divisor:        divisorOf(st),
		WindowEnd:      st.Config.VestingStart(),
		InitialPPM:     st.Config.VestingInitial,
		Duration:       st.Config.VestingTime,
	}, now)
}

// Harvest releases the tokens that vested since the sender's last harvest.
// Calling it again at the same time fails with NoZeroAmount.
func (c *Contract) Harvest(db rawdb.ReadWriter, env Env) (*Response, error) {
	l, err := LoadLedger(db)
	if err != nil {
		return nil, err
	}
	st := l.State()
	if !st.Config.Finalized {
		return nil, ErrNotFinalized
	}
	sender, err := c.canonical(env.Sender)
	if err != nil {
		return nil, err
	}
	entry, exists, err := l.Entry(sender)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoZeroAmount
	}
	_, claimable, err := positionVesting(st, entry.Amount, env.Now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	release := claimable.SaturatingSub(entry.Claimed)
	if release.IsZero() {
		return nil, ErrNoZeroAmount
	}
	if err := l.Claim(sender, release); err != nil {
		return nil, err
	}
	return newResponse("harvest").
		add("user", sender).
		add("amount", release.String()).
		addIntent(Intent{Kind: IntentTokenTransfer, Recipient: sender, Token: st.Config.Token, Amount: release}), nil
}

// Collect sends the sale's native balance to the owner, minus the currency
// tax. There is no time restriction: the owner may collect before the sale
// is finalized. With the reserve guard on, contributions that can still be
// withdrawn stay behind.
func (c *Contract) Collect(db rawdb.ReadWriter, env Env) (*Response, error) {
	st, err := loadState(db)
	if err != nil {
		return nil, err
	}
	if err := c.requireOwner(st, env.Sender); err != nil {
		return nil, err
	}
	balance, err := env.Treasury.Balance(env.Contract, c.opts.Denom)
	if err != nil {
		return nil, err
	}
	if c.opts.ReserveGuard && withdrawable(&st.Config, env.Now) {
		balance = balance.SaturatingSub(st.TotalAmount)
	}
	if balance.IsZero() {
		return nil, ErrNoZeroAmount
	}
	out, err := env.Treasury.DeductTax(types.Coin{Denom: c.opts.Denom, Amount: balance})
	if err != nil {
		return nil, err
	}
	return newResponse("collect").
		add("user", st.Owner).
		add("amount", out.Amount.String()).
		addIntent(Intent{Kind: IntentBankSend, Recipient: st.Owner, Denom: out.Denom, Amount: out.Amount}), nil
}

// withdrawable reports whether participants can still pull contributions
// out at or after now.
func withdrawable(cfg *types.SaleConfig, now uint64) bool {
	return cfg.HasWithdrawWindow() && !cfg.Finalized && now <= cfg.EndWithdrawTime
}

// CollectTokens sends amount of the sale token to the owner. With the
// reserve guard on, the sale keeps enough tokens to cover everything owed
// and not yet harvested.
func (c *Contract) CollectTokens(db rawdb.ReadWriter, env Env, amount types.Amount) (*Response, error) {
	st, err := loadState(db)
	if err != nil {
		return nil, err
	}
	if err := c.requireOwner(st, env.Sender); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, ErrNoZeroAmount
	}
	if c.opts.ReserveGuard {
		if err := c.checkTokenReserve(st, env, amount); err != nil {
			return nil, err
		}
	}
	return newResponse("collect_tokens").
		add("user", st.Owner).
		add("amount", amount.String()).
		addIntent(Intent{Kind: IntentTokenTransfer, Recipient: st.Owner, Token: st.Config.Token, Amount: amount}), nil
}

func (c *Contract) checkTokenReserve(st *types.SaleState, env Env, amount types.Amount) error {
	balance, err := env.Treasury.TokenBalance(st.Config.Token, env.Contract)
	if err != nil {
		return err
	}
	left, err := balance.Sub(amount)
	if err != nil {
		return ErrInsufficientBalance
	}
	if left.Lt(Obligations(st)) {
		return ErrReserveViolation
	}
	return nil
}

// Obligations returns the tokens owed to participants and not yet
// harvested. It is zero while the schedule cannot be computed.
func Obligations(st *types.SaleState) types.Amount {
	owed, err := vesting.Owed(st.TotalAmount, st.Config.OfferingAmount, divisorOf(st))
	if err != nil {
		return types.Amount{}
	}
	return owed.SaturatingSub(st.TotalClaimed)
}

// Migrate is not supported.
func (c *Contract) Migrate(rawdb.ReadWriter, Env, string) (*Response, error) {
	return nil, ErrMigrationUnsupported
}

// Execute dispatches msg to the matching operation.
func (c *Contract) Execute(db rawdb.ReadWriter, env Env, msg *ExecuteMsg) (*Response, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case msg.Configure != nil:
		return c.Configure(db, env, *msg.Configure)
	case msg.Deposit != nil:
		return c.Deposit(db, env, msg.Deposit.Allocation, msg.Deposit.Proof)
	case msg.DepositFcfs != nil:
		return c.DepositFcfs(db, env, msg.DepositFcfs.Allocation, msg.DepositFcfs.Proof)
	case msg.Withdraw != nil:
		return c.Withdraw(db, env, msg.Withdraw.Amount)
	case msg.Harvest != nil:
		return c.Harvest(db, env)
	case msg.Collect != nil:
		return c.Collect(db, env)
	case msg.CollectTokens != nil:
		return c.CollectTokens(db, env, msg.CollectTokens.Amount)
	case msg.Migrate != nil:
		return c.Migrate(db, env, msg.Migrate.NewContract)
	}
	return nil, errors.New("unreachable")
}
