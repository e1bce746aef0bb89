package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/host"
	"github.com/Thorstarter/thorstarter-terra/sale"
)

// DefaultEventsLimit bounds sale_events when no limit is given.
const DefaultEventsLimit = 100

// Backend is the part of the host the API drives.
type Backend interface {
	Instantiate(ctx context.Context, sender string, msg sale.InstantiateMsg) (*host.Event, error)
	InstantiateSigned(ctx context.Context, sender string, nonce uint64, msg sale.InstantiateMsg) (*host.Event, error)
	Execute(ctx context.Context, sender string, funds types.Coins, msg *sale.ExecuteMsg) (*host.Event, error)
	ExecuteSigned(ctx context.Context, sender string, nonce uint64, funds types.Coins, msg *sale.ExecuteMsg) (*host.Event, error)
	Nonce(addr string) (uint64, error)
	Address() string
	Query(ctx context.Context, msg *sale.QueryMsg) (json.RawMessage, error)
	Events(from uint64, limit int) ([]host.Event, error)
	Balance(addr, denom string) (types.Amount, error)
	TokenBalance(token, addr string) (types.Amount, error)
	Now() uint64
}

// SaleAPI implements the sale_ namespace.
type SaleAPI struct {
	backend Backend
	// signed, when set, makes every state-changing call carry a valid
	// envelope signature.
	signed  bool
	codec   types.AddressCodec
	encoder types.AccountEncoder
}

type handler func(ctx context.Context, params []json.RawMessage) (any, error)

func (api *SaleAPI) handlers() map[string]handler {
	return map[string]handler{
		"sale_instantiate":  api.instantiate,
		"sale_execute":      api.execute,
		"sale_query":        api.query,
		"sale_events":       api.events,
		"sale_balance":      api.balance,
		"sale_tokenBalance": api.tokenBalance,
		"sale_now":          api.now,
		"sale_nonce":        api.nonce,
	}
}

// paramError marks a failure to decode parameters.
type paramError struct{ err error }

func (e *paramError) Error() string { return e.err.Error() }
func (e *paramError) Unwrap() error { return e.err }

func invalidParams(format string, args ...any) error {
	return &paramError{fmt.Errorf(format, args...)}
}

func decodeParam(params []json.RawMessage, i int, v any, required bool) error {
	if i >= len(params) {
		if required {
			return invalidParams("missing parameter %d", i)
		}
		return nil
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return invalidParams("parameter %d: %v", i, err)
	}
	return nil
}

// envelope decodes params[0] as an Envelope, verifies it when signatures
// are required, and decodes its message into msg.
func (api *SaleAPI) envelope(params []json.RawMessage, msg any) (*Envelope, error) {
	var env Envelope
	if err := decodeParam(params, 0, &env, true); err != nil {
		return nil, err
	}
	if api.signed {
		if err := env.Verify(api.codec, api.encoder, api.backend.Address()); err != nil {
			return nil, err
		}
	}
	if len(env.Msg) == 0 {
		return nil, invalidParams("envelope without msg")
	}
	dec := json.NewDecoder(bytes.NewReader(env.Msg))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", sale.ErrInvalidMessage, err)
	}
	return &env, nil
}

func (api *SaleAPI) instantiate(ctx context.Context, params []json.RawMessage) (any, error) {
	var msg sale.InstantiateMsg
	env, err := api.envelope(params, &msg)
	if err != nil {
		return nil, err
	}
	if len(env.Funds) > 0 {
		return nil, fmt.Errorf("%w: instantiate takes no funds", sale.ErrInvalidMessage)
	}
	if api.signed {
		return api.backend.InstantiateSigned(ctx, env.Sender, env.Nonce, msg)
	}
	return api.backend.Instantiate(ctx, env.Sender, msg)
}

func (api *SaleAPI) execute(ctx context.Context, params []json.RawMessage) (any, error) {
	var msg sale.ExecuteMsg
	env, err := api.envelope(params, &msg)
	if err != nil {
		return nil, err
	}
	if api.signed {
		return api.backend.ExecuteSigned(ctx, env.Sender, env.Nonce, env.Funds, &msg)
	}
	return api.backend.Execute(ctx, env.Sender, env.Funds, &msg)
}

func (api *SaleAPI) query(ctx context.Context, params []json.RawMessage) (any, error) {
	var msg sale.QueryMsg
	if err := decodeParam(params, 0, &msg, true); err != nil {
		return nil, err
	}
	return api.backend.Query(ctx, &msg)
}

func (api *SaleAPI) events(_ context.Context, params []json.RawMessage) (any, error) {
	var from uint64
	limit := DefaultEventsLimit
	if err := decodeParam(params, 0, &from, false); err != nil {
		return nil, err
	}
	if err := decodeParam(params, 1, &limit, false); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultEventsLimit {
		limit = DefaultEventsLimit
	}
	return api.backend.Events(from, limit)
}

func (api *SaleAPI) balance(_ context.Context, params []json.RawMessage) (any, error) {
	var addr, denom string
	if err := decodeParam(params, 0, &addr, true); err != nil {
		return nil, err
	}
	if err := decodeParam(params, 1, &denom, true); err != nil {
		return nil, err
	}
	addr, err := api.codec.Canonicalize(addr)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	return api.backend.Balance(addr, denom)
}

func (api *SaleAPI) tokenBalance(_ context.Context, params []json.RawMessage) (any, error) {
	var token, addr string
	if err := decodeParam(params, 0, &token, true); err != nil {
		return nil, err
	}
	if err := decodeParam(params, 1, &addr, true); err != nil {
		return nil, err
	}
	addr, err := api.codec.Canonicalize(addr)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	return api.backend.TokenBalance(token, addr)
}

func (api *SaleAPI) now(context.Context, []json.RawMessage) (any, error) {
	return api.backend.Now(), nil
}

func (api *SaleAPI) nonce(_ context.Context, params []json.RawMessage) (any, error) {
	var addr string
	if err := decodeParam(params, 0, &addr, true); err != nil {
		return nil, err
	}
	if _, err := api.codec.Canonicalize(addr); err != nil {
		return nil, invalidParams("%v", err)
	}
	return api.backend.Nonce(addr)
}

// toRPCError maps an error onto a JSON-RPC error object.
func toRPCError(err error) *RPCError {
	var pe *paramError
	switch {
	case errors.As(err, &pe):
		return &RPCError{Code: ErrCodeInvalidParams, Message: err.Error()}
	case errors.Is(err, ErrInvalidSignature):
		return &RPCError{Code: ErrCodeDomain, Message: "InvalidSignature", Data: err.Error()}
	case errors.Is(err, host.ErrInvalidNonce):
		return &RPCError{Code: ErrCodeDomain, Message: "InvalidNonce", Data: err.Error()}
	case errors.Is(err, host.ErrIntentFailed):
		return &RPCError{Code: ErrCodeDomain, Message: "IntentFailed", Data: err.Error()}
	}
	if name, ok := sale.ErrorName(err); ok {
		return &RPCError{Code: ErrCodeDomain, Message: name, Data: err.Error()}
	}
	return &RPCError{Code: ErrCodeInternal, Message: "internal error", Data: err.Error()}
}
