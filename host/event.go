package host

import (
	"encoding/json"
	"fmt"

	"github.com/Thorstarter/thorstarter-terra/core/rawdb"
	"github.com/Thorstarter/thorstarter-terra/core/types"
	"github.com/Thorstarter/thorstarter-terra/sale"
)

// Event is the durable record of one committed call.
type Event struct {
	Seq        uint64           `json:"seq"`
	Time       uint64           `json:"time"`
	Sender     string           `json:"sender"`
	Action     string           `json:"action"`
	Funds      types.Coins      `json:"funds,omitempty"`
	Attributes []sale.Attribute `json:"attributes"`
	Intents    []sale.Intent    `json:"intents,omitempty"`
}

// appendEvent stores ev in the log inside the call's overlay and sets its
// sequence number.
func appendEvent(db rawdb.ReadWriter, ev *Event) error {
	head, err := rawdb.ReadEventHead(db)
	if err != nil {
		return err
	}
	ev.Seq = head + 1
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	seq, err := rawdb.AppendEvent(db, data)
	if err != nil {
		return err
	}
	if seq != ev.Seq {
		return fmt.Errorf("event sequence moved from %d to %d", ev.Seq, seq)
	}
	return nil
}

func readEvents(db rawdb.Iteratee, from uint64, limit int) ([]Event, error) {
	raw, err := rawdb.ReadEvents(db, from, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(raw))
	for _, data := range raw {
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
