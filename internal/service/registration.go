package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/idempotency"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/queue"
	"github.com/iliyamo/event-registration/internal/repository"
)

var (
	registrationCreatedCounter   = metrics.GetOrCreateCounter(`registrations_total{result="created"}`)
	registrationReplayedCounter  = metrics.GetOrCreateCounter(`registrations_total{result="replayed"}`)
	registrationDuplicateCounter = metrics.GetOrCreateCounter(`registrations_total{result="duplicate"}`)
)

// RegistrationInput is a sign-up as received from the client.  Any client
// supplied fee is dropped before this point.
type RegistrationInput struct {
	EventName      string
	FullName       string
	Email          string
	Phone          string
	College        string
	Year           string
	Branch         string
	TransactionID  string
	IdempotencyKey string
	UserAgent      string
	IP             string
}

// registrationFingerprint is what the idempotency hash covers.
type registrationFingerprint struct {
	EventName     string `json:"eventName"`
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	College       string `json:"college"`
	Year          string `json:"year"`
	Branch        string `json:"branch"`
	TransactionID string `json:"transactionId"`
}

type registrationResponse struct {
	Success        bool        `json:"success"`
	Message        string      `json:"message"`
	RegistrationID string      `json:"registrationId"`
	EntryFee       json.Number `json:"entryFee"`
}

type RegistrationService struct {
	pricing       *Pricing
	registrations RegistrationStore
	idem          idempotency.Store
	notifier      Notifier
	tasks         *PostCommit
	logger        *slog.Logger
	now           func() time.Time
}

func NewRegistrationService(p *Pricing, regs RegistrationStore, idem idempotency.Store, n Notifier, tasks *PostCommit, logger *slog.Logger) *RegistrationService {
	return &RegistrationService{
		pricing:       p,
		registrations: regs,
		idem:          idem,
		notifier:      n,
		tasks:         tasks,
		logger:        logger,
		now:           nowUTC,
	}
}

// Submit records a registration priced from the catalog.  With an
// idempotency key a repeated submission returns the first response.
func (s *RegistrationService) Submit(ctx context.Context, in RegistrationInput) (*Result, error) {
	in = normalizeRegistration(in)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}
	key, err := idempotency.NormalizeKey(in.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	if _, err := s.pricing.ValidateEvent(ctx, in.EventName); err != nil {
		return nil, err
	}
	fee, err := s.pricing.EntryFee(ctx, in.EventName)
	if err != nil {
		return nil, err
	}

	var hash string
	if key != "" {
		hash, err = idempotency.Hash(registrationFingerprint{
			EventName: in.EventName, FullName: in.FullName, Email: in.Email, Phone: in.Phone,
			College: in.College, Year: in.Year, Branch: in.Branch, TransactionID: in.TransactionID,
		})
		if err != nil {
			return nil, apperr.Internal("failed to hash request", err)
		}
		rec, err := idempotency.Replay(ctx, s.idem, key, hash, s.now())
		if err != nil {
			return nil, err
		}
		if rec != nil {
			registrationReplayedCounter.Inc()
			return replayed(rec), nil
		}
	}

	now := s.now()
	reg := &model.Registration{
		ID:            uuid.NewString(),
		EventName:     in.EventName,
		EntryFee:      fee,
		FullName:      in.FullName,
		Email:         in.Email,
		Phone:         in.Phone,
		College:       in.College,
		Year:          in.Year,
		Branch:        in.Branch,
		TransactionID: optional(in.TransactionID),
		UserAgent:     optional(in.UserAgent),
		IP:            optional(in.IP),
		PaymentStatus: model.PaymentPending,
		CreatedAt:     now,
	}
	if err := s.registrations.Create(ctx, reg); err != nil {
		if errors.Is(err, repository.ErrDuplicateRegistration) {
			registrationDuplicateCounter.Inc()
			return nil, apperr.Conflict("duplicate_registration", "You have already registered for this event with this email address")
		}
		return nil, apperr.Internal("failed to save registration", err)
	}
	registrationCreatedCounter.Inc()

	res, err := marshalResult(http.StatusCreated, registrationResponse{
		Success:        true,
		Message:        "Registration submitted successfully",
		RegistrationID: reg.ID,
		EntryFee:       feeNumber(fee),
	})
	if err != nil {
		return nil, apperr.Internal("failed to encode response", err)
	}

	if key != "" {
		rec := idempotency.NewRecord(key, hash, res.Status, res.Body, now, idempotency.RegistrationTTL)
		if err := s.idem.Save(ctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "failed to store idempotency record", "idempotency_key", key, "registration_id", reg.ID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "registration created", "registration_id", reg.ID, "event", reg.EventName, "entry_fee", fee.String())
	if s.notifier != nil {
		ev := queue.RegistrationConfirmedEvent{
			RegistrationID: reg.ID,
			EventName:      reg.EventName,
			FullName:       reg.FullName,
			Email:          reg.Email,
			EntryFee:       fee.String(),
			RegisteredAt:   now.Format(time.RFC3339),
		}
		s.tasks.Go("registration_confirmed_notification", func(ctx context.Context) error {
			return s.notifier.RegistrationConfirmed(ctx, ev)
		})
	}
	return res, nil
}

func normalizeRegistration(in RegistrationInput) RegistrationInput {
	for _, f := range []*string{&in.EventName, &in.FullName, &in.Email, &in.Phone, &in.College,
		&in.Year, &in.Branch, &in.TransactionID, &in.UserAgent, &in.IP} {
		*f = strings.TrimSpace(*f)
	}
	return in
}

func validateRegistration(in RegistrationInput) error {
	required := []struct{ field, value string }{
		{"eventName", in.EventName},
		{"fullName", in.FullName},
		{"email", in.Email},
		{"phone", in.Phone},
		{"college", in.College},
		{"year", in.Year},
		{"branch", in.Branch},
	}
	for _, r := range required {
		if r.value == "" {
			return apperr.Validation("validation_error", r.field+" is required")
		}
	}
	if !validEmail(in.Email) {
		return apperr.Validation("validation_error", "Invalid email format")
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
