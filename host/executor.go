// Package host runs the sale contract the way a chain would: calls are
// serialised, attached funds are credited to the sale before the call, the
// transfers the contract requests are applied after it, and the call with
// its transfers commits atomically or not at all.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/log"
	"github.com/Thorstarter/thorstarter-terra/metrics"
	"github.com/Thorstarter/thorstarter-terra/sale"
	"github.com/Thorstarter/thorstarter-terra/treasury"
)

var (
	// ErrIntentFailed wraps a transfer the contract requested but the bank
	// could not perform. The whole call is rolled back.
	ErrIntentFailed = errors.New("intent failed")

	// ErrInvalidNonce rejects a signed request whose nonce is not the next
	// one expected from its sender.
	ErrInvalidNonce = errors.New("InvalidNonce")
)

// DefaultFeedBuffer is the per-subscriber event buffer.
const DefaultFeedBuffer = 64

// Config wires an Executor.
type Config struct {
	// Address is the sale's own account.
	Address string
	Oracle  treasury.TaxOracle
	// TaxCollector receives the tax charged on outbound native transfers.
	// Empty burns it.
	TaxCollector string
	// Now returns the clock in unix seconds. Defaults to the wall clock.
	Now        func() uint64
	Metrics    *metrics.Metrics
	Logger     *log.Logger
	FeedBuffer int
}

// Executor owns the store and serialises every state change through it.
type Executor struct {
	mu       sync.RWMutex
	db       rawdb.KeyValueStore
	contract *sale.Contract
	addr     string
	taxTo    string
	oracle   treasury.TaxOracle
	now      func() uint64
	feed     *Feed
	metrics  *metrics.Metrics
	log      *log.Logger
}

// NewExecutor returns an executor running contract on db.
func NewExecutor(db rawdb.KeyValueStore, contract *sale.Contract, cfg Config) (*Executor, error) {
	if db == nil || contract == nil {
		return nil, errors.New("host: nil store or contract")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("host: nil tax oracle")
	}
	addr, err := contract.Options().Codec.Canonicalize(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("host: sale address: %w", err)
	}
	if cfg.TaxCollector != "" {
		if cfg.TaxCollector, err = contract.Options().Codec.Canonicalize(cfg.TaxCollector); err != nil {
			return nil, fmt.Errorf("host: tax collector: %w", err)
		}
	}
	if cfg.Now == nil {
		cfg.Now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.FeedBuffer == 0 {
		cfg.FeedBuffer = DefaultFeedBuffer
	}
	return &Executor{
		db:       db,
		contract: contract,
		addr:     addr,
		taxTo:    cfg.TaxCollector,
		oracle:   cfg.Oracle,
		now:      cfg.Now,
		feed:     NewFeed(cfg.FeedBuffer),
		metrics:  cfg.Metrics,
		log:      cfg.Logger.Module("host"),
	}, nil
}

// Address returns the sale's own account.
func (e *Executor) Address() string { return e.addr }

// Feed returns the live event feed.
func (e *Executor) Feed() *Feed { return e.feed }

// Close shuts the event feed. The store is owned by the caller.
func (e *Executor) Close() { e.feed.Close() }

// Instantiate creates the sale with sender as owner.
func (e *Executor) Instantiate(ctx context.Context, sender string, msg sale.InstantiateMsg) (*Event, error) {
	return e.run(ctx, "instantiate", sender, nil, nil, instantiateCall(e.contract, msg))
}

// InstantiateSigned is Instantiate for a signed request carrying nonce.
func (e *Executor) InstantiateSigned(ctx context.Context, sender string, nonce uint64, msg sale.InstantiateMsg) (*Event, error) {
	return e.run(ctx, "instantiate", sender, nil, &nonce, instantiateCall(e.contract, msg))
}

// Execute runs msg from sender with funds attached.
func (e *Executor) Execute(ctx context.Context, sender string, funds types.Coins, msg *sale.ExecuteMsg) (*Event, error) {
	return e.run(ctx, actionOf(msg), sender, funds, nil, executeCall(e.contract, msg))
}

// ExecuteSigned is Execute for a signed request. nonce must be the next
// one expected from sender; it is used up whether or not the call
// succeeds, so the same request never runs twice.
func (e *Executor) ExecuteSigned(ctx context.Context, sender string, nonce uint64, funds types.Coins, msg *sale.ExecuteMsg) (*Event, error) {
	return e.run(ctx, actionOf(msg), sender, funds, &nonce, executeCall(e.contract, msg))
}

// Nonce returns the nonce the next signed request from addr must carry.
func (e *Executor) Nonce(addr string) (uint64, error) {
	who, err := e.contract.Options().Codec.Canonicalize(addr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", sale.ErrInvalidAddress, err)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return rawdb.ReadNonce(e.db, who)
}

type call func(db rawdb.ReadWriter, env sale.Env) (*sale.Response, error)

func instantiateCall(c *sale.Contract, msg sale.InstantiateMsg) call {
	return func(db rawdb.ReadWriter, env sale.Env) (*sale.Response, error) {
		return c.Instantiate(db, env, msg.Config)
	}
}

func executeCall(c *sale.Contract, msg *sale.ExecuteMsg) call {
	return func(db rawdb.ReadWriter, env sale.Env) (*sale.Response, error) {
		return c.Execute(db, env, msg)
	}
}

func actionOf(msg *sale.ExecuteMsg) string {
	if msg == nil {
		return ""
	}
	return msg.Action()
}

// errorName labels err for metrics and logs.
func errorName(err error) (string, bool) {
	if errors.Is(err, ErrInvalidNonce) {
		return "InvalidNonce", true
	}
	return sale.ErrorName(err)
}

func (e *Executor) run(ctx context.Context, action, sender string, funds types.Coins, nonce *uint64, fn call) (*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	e.mu.Lock()
	var (
		ev  *Event
		err error
	)
	if nonce != nil {
		ev, err = e.applySigned(action, sender, funds, *nonce, fn)
	} else {
		ev, err = e.apply(action, sender, funds, nil, fn)
	}
	// Published under the lock so subscribers see events in Seq order.
	if err == nil {
		e.feed.Publish(*ev)
	}
	e.mu.Unlock()

	took := time.Since(start)
	if err != nil {
		name, ok := errorName(err)
		if !ok {
			name = "Internal"
		}
		e.metrics.ObserveExecute(action, name, took)
		if ok {
			e.log.Info("message rejected", "action", action, "sender", sender, "err", name)
		} else {
			e.log.Error("message failed", "action", action, "sender", sender, "err", err)
		}
		return nil, err
	}
	e.metrics.ObserveExecute(action, "", took)
	e.log.Debug("message executed", "action", action, "sender", sender, "seq", ev.Seq, "took", took)
	return ev, nil
}

// applySigned checks the sender's nonce and advances it with the call. A
// call the contract rejects still uses the nonce up.
func (e *Executor) applySigned(action, sender string, funds types.Coins, nonce uint64, fn call) (*Event, error) {
	who, err := e.contract.Options().Codec.Canonicalize(sender)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sale.ErrInvalidAddress, err)
	}
	next, err := rawdb.ReadNonce(e.db, who)
	if err != nil {
		return nil, err
	}
	if nonce != next {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrInvalidNonce, nonce, next)
	}
	bump := func(db rawdb.KeyValueWriter) error { return rawdb.WriteNonce(db, who, next+1) }
	ev, err := e.apply(action, sender, funds, bump, fn)
	if err != nil {
		if werr := bump(e.db); werr != nil {
			return nil, errors.Join(err, werr)
		}
		return nil, err
	}
	return ev, nil
}

// apply runs one call inside an overlay. Nothing reaches the store unless
// the call, its transfers and its event all succeed. pre, when set, writes
// into the same overlay.
func (e *Executor) apply(action, sender string, funds types.Coins, pre func(rawdb.KeyValueWriter) error, fn call) (*Event, error) {
	if err := funds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", sale.ErrInvalidMessage, err)
	}
	ov := rawdb.NewOverlay(e.db)
	defer ov.Discard()
	if pre != nil {
		if err := pre(ov); err != nil {
			return nil, err
		}
	}

	bank := NewBank(ov)
	for _, c := range funds {
		if err := bank.Mint(e.addr, c); err != nil {
			return nil, err
		}
	}
	now := e.now()
	gw := treasury.NewGateway(e.oracle, bank)
	env := sale.Env{
		Now:      now,
		Sender:   sender,
		Funds:    funds,
		Contract: e.addr,
		Treasury: gw,
	}
	resp, err := fn(ov, env)
	if err != nil {
		return nil, err
	}
	if err := e.applyIntents(bank, gw, resp.Intents); err != nil {
		return nil, err
	}
	ev := &Event{
		Time:       now,
		Sender:     sender,
		Action:     resp.Action(),
		Funds:      funds,
		Attributes: resp.Attributes,
		Intents:    resp.Intents,
	}
	if ev.Action == "" {
		ev.Action = action
	}
	if err := appendEvent(ov, ev); err != nil {
		return nil, err
	}
	if err := ov.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	e.refreshAggregates()
	return ev, nil
}

// applyIntents performs the requested transfers. Native sends are taxed on
// top, from the sale's account.
func (e *Executor) applyIntents(bank *Bank, gw *treasury.Gateway, intents []sale.Intent) error {
	for i, in := range intents {
		var err error
		switch in.Kind {
		case sale.IntentBankSend:
			coin := types.Coin{Denom: in.Denom, Amount: in.Amount}
			if err = bank.Send(e.addr, in.Recipient, coin); err == nil {
				err = e.chargeTax(bank, gw, coin)
			}
		case sale.IntentTokenTransfer:
			err = bank.TransferTokens(in.Token, e.addr, in.Recipient, in.Amount)
		default:
			err = fmt.Errorf("unknown kind %q", in.Kind)
		}
		if err != nil {
			return fmt.Errorf("%w: #%d %s to %s: %v", ErrIntentFailed, i, in.Kind, in.Recipient, err)
		}
	}
	return nil
}

func (e *Executor) chargeTax(bank *Bank, gw *treasury.Gateway, coin types.Coin) error {
	tax, err := gw.TaxOn(coin)
	if err != nil || tax.IsZero() {
		return err
	}
	fee := types.Coin{Denom: coin.Denom, Amount: tax}
	if e.taxTo == "" {
		return bank.Burn(e.addr, fee)
	}
	return bank.Send(e.addr, e.taxTo, fee)
}

func (e *Executor) refreshAggregates() {
	if e.metrics == nil {
		return
	}
	st, err := rawdb.ReadSaleState(e.db)
	if err != nil {
		return
	}
	e.metrics.SetAggregates(st.TotalUsers, st.TotalAmount, st.TotalClaimed)
}

// Query answers msg against committed state.
func (e *Executor) Query(ctx context.Context, msg *sale.QueryMsg) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out, err := e.contract.Query(e.db, msg)
	if err == nil {
		e.metrics.ObserveQuery(queryKind(msg))
	}
	return out, err
}

func queryKind(msg *sale.QueryMsg) string {
	switch {
	case msg.State != nil:
		return "state"
	case msg.UserState != nil:
		return "user_state"
	case msg.Phase != nil:
		return "phase"
	case msg.Users != nil:
		return "users"
	}
	return "unknown"
}

// Now returns the executor's clock reading.
func (e *Executor) Now() uint64 { return e.now() }

// Balance returns addr's committed native balance.
func (e *Executor) Balance(addr, denom string) (types.Amount, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewBank(e.db).Balance(addr, denom)
}

// TokenBalance returns addr's committed token balance.
func (e *Executor) TokenBalance(token, addr string) (types.Amount, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return NewBank(e.db).TokenBalance(token, addr)
}

// Fund mints native coins and tokens to addr outside any sale call. The
// operator uses it to stock the sale's token reserve.
func (e *Executor) Fund(addr string, coins types.Coins, token string, tokens types.Amount) error {
	if err := coins.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ov := rawdb.NewOverlay(e.db)
	defer ov.Discard()
	bank := NewBank(ov)
	for _, c := range coins {
		if err := bank.Mint(addr, c); err != nil {
			return err
		}
	}
	if !tokens.IsZero() {
		if token == "" {
			return errors.New("host: token amount without token")
		}
		if err := bank.MintTokens(token, addr, tokens); err != nil {
			return err
		}
	}
	if err := ov.Commit(); err != nil {
		return err
	}
	e.log.Info("account funded", "addr", addr, "coins", len(coins), "token", token, "tokens", tokens)
	return nil
}

// Events returns up to limit committed events starting at sequence from.
func (e *Executor) Events(from uint64, limit int) ([]Event, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return readEvents(e.db, from, limit)
}
