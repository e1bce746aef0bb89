package sale

import (
	"strconv"

	"github.com/Thorstarter/thorstarter-terra/core/types"
)

// Attribute is one key/value pair of the structured event a call emits.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// IntentKind names an outbound transfer the host must perform.
type IntentKind string

const (
	// IntentBankSend moves native currency out of the sale.
	IntentBankSend IntentKind = "bank_send"
	// IntentTokenTransfer moves sale tokens out of the sale.
	IntentTokenTransfer IntentKind = "token_transfer"
)

// Intent is a transfer requested by the contract. The host applies intents
// after the call and rolls the call back if any of them fails.
type Intent struct {
	Kind      IntentKind   `json:"kind"`
	Recipient string       `json:"recipient"`
	Denom     string       `json:"denom,omitempty"`
	Token     string       `json:"token,omitempty"`
	Amount    types.Amount `json:"amount"`
}

// Response is the result of a successful call.
type Response struct {
	Attributes []Attribute `json:"attributes"`
	Intents    []Intent    `json:"intents,omitempty"`
}

func newResponse(action string) *Response {
	return &Response{Attributes: []Attribute{{Key: "action", Value: action}}}
}

func (r *Response) add(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r *Response) addUint(key string, v uint64) *Response {
	return r.add(key, strconv.FormatUint(v, 10))
}

func (r *Response) addIntent(in Intent) *Response {
	r.Intents = append(r.Intents, in)
	return r
}

// Attr returns the value of the first attribute named key.
func (r *Response) Attr(key string) string {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// Action returns the action attribute.
func (r *Response) Action() string { return r.Attr("action") }
