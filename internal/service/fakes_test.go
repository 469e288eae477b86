package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-registration/internal/gateway"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/queue"
	"github.com/iliyamo/event-registration/internal/repository"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeEvents struct {
	mu     sync.Mutex
	events map[string]*model.Event
}

func newFakeEvents(evs ...model.Event) *fakeEvents {
	f := &fakeEvents{events: map[string]*model.Event{}}
	for i := range evs {
		ev := evs[i]
		f.events[ev.Name] = &ev
	}
	return f
}

func (f *fakeEvents) setFee(name, fee string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[name].EntryFee = decimal.RequireFromString(fee)
}

func (f *fakeEvents) GetActiveByName(_ context.Context, name string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[name]
	if !ok || !ev.IsActive {
		return nil, repository.ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeEvents) ListActive(_ context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Event
	for _, ev := range f.events {
		if ev.IsActive {
			out = append(out, *ev)
		}
	}
	return out, nil
}

type fakeRegistrations struct {
	mu        sync.Mutex
	rows      map[string]*model.Registration
	updateErr error
}

func newFakeRegistrations() *fakeRegistrations {
	return &fakeRegistrations{rows: map[string]*model.Registration{}}
}

func (f *fakeRegistrations) Create(_ context.Context, reg *model.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.EventName == reg.EventName && r.Email == reg.Email {
			return repository.ErrDuplicateRegistration
		}
	}
	cp := *reg
	f.rows[reg.ID] = &cp
	return nil
}

func (f *fakeRegistrations) GetByID(_ context.Context, id string) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrRegistrationNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrations) UpdatePaymentStatus(_ context.Context, id string, status model.PaymentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return false, f.updateErr
	}
	r, ok := f.rows[id]
	if !ok || r.PaymentStatus == model.PaymentPaid {
		return false, nil
	}
	r.PaymentStatus = status
	return true, nil
}

func (f *fakeRegistrations) List(_ context.Context) ([]model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Registration{}
	for _, r := range f.rows {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRegistrations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakePayments struct {
	mu        sync.Mutex
	rows      map[string]*model.Payment
	createErr error
	// loseRace makes MarkTerminal report that another delivery won; reads
	// after that fail with rereadErr when it is set.
	loseRace  bool
	rereadErr error
	raceLost  bool
}

func newFakePayments() *fakePayments { return &fakePayments{rows: map[string]*model.Payment{}} }

func (f *fakePayments) Create(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.rows[p.GatewayOrderID]; ok {
		return repository.ErrDuplicateOrder
	}
	cp := *p
	f.rows[p.GatewayOrderID] = &cp
	return nil
}

func (f *fakePayments) GetByGatewayOrderID(_ context.Context, orderID string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raceLost && f.rereadErr != nil {
		return nil, f.rereadErr
	}
	p, ok := f.rows[orderID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) MarkTerminal(_ context.Context, orderID string, u repository.TerminalUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loseRace {
		f.raceLost = true
		return false, nil
	}
	p, ok := f.rows[orderID]
	if !ok || p.Status != model.PaymentPending {
		return false, nil
	}
	p.Status = u.Status
	p.GatewayPaymentID = &u.GatewayPaymentID
	p.PaymentMethod = &u.PaymentMethod
	p.UpdatedAt = u.At
	at := u.At
	if u.Status == model.PaymentPaid {
		p.PaidAt = &at
	} else {
		p.FailedAt = &at
	}
	return true, nil
}

func (f *fakePayments) List(_ context.Context) ([]model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Payment{}
	for _, p := range f.rows {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePayments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeIdempotency struct {
	mu   sync.Mutex
	recs map[string]model.IdempotencyRecord
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{recs: map[string]model.IdempotencyRecord{}}
}

func (f *fakeIdempotency) Lookup(_ context.Context, key string, now time.Time) (*model.IdempotencyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[key]
	if !ok || rec.Expired(now) {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeIdempotency) Save(_ context.Context, rec model.IdempotencyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.recs[rec.Key]; ok && !old.Expired(rec.CreatedAt) {
		return nil
	}
	f.recs[rec.Key] = rec
	return nil
}

// fakeLocker is an in-process Locker.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.OrderRequest
	err      error
	// block, when set, is received from before answering.
	block chan struct{}
}

func (g *fakeGateway) CreateOrder(_ context.Context, in gateway.OrderRequest) (*gateway.Order, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, in)
	return &gateway.Order{ID: fmt.Sprintf("order_%d", len(g.requests)), Currency: in.Currency, Status: "created"}, nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type fakeNotifier struct {
	mu            sync.Mutex
	registrations []queue.RegistrationConfirmedEvent
	payments      []queue.PaymentStatusEvent
	err           error
}

func (n *fakeNotifier) RegistrationConfirmed(_ context.Context, ev queue.RegistrationConfirmedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.registrations = append(n.registrations, ev)
	return n.err
}

func (n *fakeNotifier) PaymentStatusChanged(_ context.Context, ev queue.PaymentStatusEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, ev)
	return n.err
}

var errBoom = errors.New("boom")

// fixture wires every service over the same fakes.
type fixture struct {
	events        *fakeEvents
	registrations *fakeRegistrations
	payments      *fakePayments
	idem          *fakeIdempotency
	locker        *fakeLocker
	gateway       *fakeGateway
	notifier      *fakeNotifier
	tasks         *PostCommit

	registration *RegistrationService
	payment      *PaymentService
	webhook      *WebhookService
}

const webhookSecret = "whsec_test"

func newFixture() *fixture {
	f := &fixture{
		events: newFakeEvents(
			model.Event{ID: "e1", Name: "Tech Quiz", EntryFee: decimal.RequireFromString("50.00"), IsActive: true},
			model.Event{ID: "e2", Name: "Robo Race", EntryFee: decimal.RequireFromString("149.99"), IsActive: true},
			model.Event{ID: "e3", Name: "Old Expo", EntryFee: decimal.RequireFromString("10.00"), IsActive: false},
		),
		registrations: newFakeRegistrations(),
		payments:      newFakePayments(),
		idem:          newFakeIdempotency(),
		locker:        newFakeLocker(),
		gateway:       &fakeGateway{},
		notifier:      &fakeNotifier{},
		tasks:         NewPostCommit(discardLogger, time.Second),
	}
	pricing := NewPricing(f.events)
	f.registration = NewRegistrationService(pricing, f.registrations, f.idem, f.notifier, f.tasks, discardLogger)
	f.payment = NewPaymentService(pricing, f.registrations, f.payments, f.idem, f.locker, f.gateway, "INR", discardLogger)
	f.webhook = NewWebhookService(f.payments, f.registrations, f.notifier, f.tasks, webhookSecret, discardLogger)
	return f
}

func sampleInput() RegistrationInput {
	return RegistrationInput{
		EventName: "Tech Quiz",
		FullName:  "Asha Rao",
		Email:     "asha@example.com",
		Phone:     "9876543210",
		College:   "NIT",
		Year:      "3",
		Branch:    "CSE",
		UserAgent: "Mozilla/5.0",
		IP:        "203.0.113.7",
	}
}
