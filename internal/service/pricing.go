package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// Pricing resolves entry fees from the catalog.  Fees are read on every
// call; nothing is cached so that a price change or deactivation between
// submission and order creation is honoured.
type Pricing struct {
	events EventStore
}

func NewPricing(events EventStore) *Pricing { return &Pricing{events: events} }

// ValidateEvent returns the active event named name.
func (p *Pricing) ValidateEvent(ctx context.Context, name string) (*model.Event, error) {
	ev, err := p.events.GetActiveByName(ctx, name)
	if errors.Is(err, repository.ErrEventNotFound) {
		return nil, apperr.NotFound("event_not_found", "Event not found or inactive")
	}
	if err != nil {
		return nil, apperr.Internal("failed to validate event", err)
	}
	return ev, nil
}

// EntryFee returns the authoritative fee of the active event named name.
func (p *Pricing) EntryFee(ctx context.Context, name string) (decimal.Decimal, error) {
	ev, err := p.ValidateEvent(ctx, name)
	if err != nil {
		return decimal.Zero, err
	}
	return ev.EntryFee, nil
}

// MinorUnits converts a fee to the smallest currency unit, rounding half
// away from zero.  Non-positive amounts cannot be charged.
func MinorUnits(fee decimal.Decimal) (int64, error) {
	minor := fee.Mul(hundred).Round(0)
	if !minor.IsPositive() {
		return 0, apperr.Validation("invalid_amount", "event has no payable entry fee")
	}
	return minor.IntPart(), nil
}

// EventView is the public catalog entry.
type EventView struct {
	Name     string      `json:"name"`
	EntryFee json.Number `json:"entryFee"`
}

// ListEvents returns the active catalog.
func (p *Pricing) ListEvents(ctx context.Context) ([]EventView, error) {
	evs, err := p.events.ListActive(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list events", err)
	}
	out := make([]EventView, 0, len(evs))
	for _, ev := range evs {
		out = append(out, EventView{Name: ev.Name, EntryFee: feeNumber(ev.EntryFee)})
	}
	return out, nil
}

func feeNumber(d decimal.Decimal) json.Number { return json.Number(d.String()) }
