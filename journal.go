package folio

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType is a typed string identifying journal events.
type EventType string

// Event types recorded in the journal.
const (
	EvtInitialize EventType = "initialize"
	EvtDeposit    EventType = "deposit"
	EvtWithdraw   EventType = "withdraw"
	EvtClaim      EventType = "claim"
)

// Event is a committed vault operation. Replaying the events of a vault, in
// order, rebuilds its state without calling the router again.
type Event interface {
	What() EventType // What returns the event type (e.g. "deposit").
	When() uint64    // When returns the block time of the event, in unix seconds.
	Ref() uuid.UUID  // Ref returns the unique identifier of the event.
}

type baseEvent struct {
	Event EventType `json:"event"`
	ID    uuid.UUID `json:"id"`
	Time  uint64    `json:"time"`
}

func newBaseEvent(what EventType, now uint64) baseEvent {
	return baseEvent{Event: what, ID: uuid.New(), Time: now}
}

func (e baseEvent) What() EventType { return e.Event }
func (e baseEvent) When() uint64    { return e.Time }
func (e baseEvent) Ref() uuid.UUID  { return e.ID }

// Date returns the event time.
func (e baseEvent) Date() time.Time { return time.Unix(int64(e.Time), 0).UTC() }

func (e baseEvent) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("event", e.Event)
	w.Append("id", e.ID)
	w.Append("time", e.Time)
	return w.MarshalJSON()
}

// Leg is one executed swap of a deposit or a withdrawal.
//
// Legs are listed in basket order. A leg with a zero input was skipped and has no path.
type Leg struct {
	Path      []common.Address `json:"path,omitempty"`
	AmountIn  Amount           `json:"amountIn"`
	AmountOut Amount           `json:"amountOut"`
}

// Initialized records the configuration of a vault module.
type Initialized struct {
	baseEvent
	Assets  []Asset        `json:"assets"`
	Factory common.Address `json:"factory"`
	FeeRate Amount         `json:"feeRate"` // percent per second, 1e18 scaled
}

func (e Initialized) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(e.baseEvent)
	w.Append("assets", e.Assets)
	w.Append("factory", e.Factory)
	w.Append("feeRate", e.FeeRate)
	return w.MarshalJSON()
}

func (e Initialized) String() string {
	return fmt.Sprintf("%d assets, factory %s, fee rate %v", len(e.Assets), e.Factory.Hex(), e.FeeRate.Units())
}

// Deposited records a deposit: the base currency brought in, the shares
// issued for it and the swap legs that bought the basket.
type Deposited struct {
	baseEvent
	Depositor common.Address `json:"depositor"`
	BaseAsset common.Address `json:"baseAsset"`
	Amount    Amount         `json:"amount"`
	Shares    Amount         `json:"shares"`
	Legs      []Leg          `json:"legs"`
	Dust      Amount         `json:"dust"` // base currency left over by the allocation
}

func (e Deposited) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(e.baseEvent)
	w.Append("depositor", e.Depositor)
	w.Append("baseAsset", e.BaseAsset)
	w.Append("amount", e.Amount)
	w.Append("shares", e.Shares)
	w.Append("legs", e.Legs)
	w.Append("dust", e.Dust)
	return w.MarshalJSON()
}

func (e Deposited) String() string {
	return fmt.Sprintf("%s deposited %v for %v shares", e.Depositor.Hex(), e.Amount, e.Shares)
}

// Withdrawn records a withdrawal: the shares burnt, the swap legs selling
// the depositor's part of the basket and the fee withheld from the proceeds.
type Withdrawn struct {
	baseEvent
	Depositor common.Address `json:"depositor"`
	BaseAsset common.Address `json:"baseAsset"`
	Shares    Amount         `json:"shares"`
	BaseValue Amount         `json:"baseValue"` // ledger value of the burnt shares
	Legs      []Leg          `json:"legs"`
	Idle      Amount         `json:"idle"` // share of the unallocated base currency paid out
	Gross     Amount         `json:"gross"`
	Fee       Amount         `json:"fee"`
	Net       Amount         `json:"net"`
}

func (e Withdrawn) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(e.baseEvent)
	w.Append("depositor", e.Depositor)
	w.Append("baseAsset", e.BaseAsset)
	w.Append("shares", e.Shares)
	w.Append("baseValue", e.BaseValue)
	w.Append("legs", e.Legs)
	w.Append("idle", e.Idle)
	w.Append("gross", e.Gross)
	w.Append("fee", e.Fee)
	w.Append("net", e.Net)
	return w.MarshalJSON()
}

func (e Withdrawn) String() string {
	return fmt.Sprintf("%s burnt %v shares for %v (fee %v)", e.Depositor.Hex(), e.Shares, e.Net, e.Fee)
}

// FeesClaimed records the release of withheld fees to the vault manager.
type FeesClaimed struct {
	baseEvent
	To     common.Address `json:"to"`
	Amount Amount         `json:"amount"`
}

func (e FeesClaimed) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(e.baseEvent)
	w.Append("to", e.To)
	w.Append("amount", e.Amount)
	return w.MarshalJSON()
}

func (e FeesClaimed) String() string {
	return fmt.Sprintf("%v fees claimed to %s", e.Amount, e.To.Hex())
}

// Journal is the append-only list of events committed by a vault module.
type Journal struct {
	events []Event
}

// Append adds events at the end of the journal.
func (j *Journal) Append(events ...Event) { j.events = append(j.events, events...) }

// Len returns the number of events.
func (j *Journal) Len() int { return len(j.events) }

// Events returns a copy of the events, oldest first.
func (j *Journal) Events() []Event { return append([]Event(nil), j.events...) }

// Since returns the events appended after the first n.
func (j *Journal) Since(n int) []Event {
	if n >= len(j.events) {
		return nil
	}
	return append([]Event(nil), j.events[n:]...)
}
