package service

import (
	"context"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/model"
)

// AdminService backs the organizer's read-only views.
type AdminService struct {
	registrations RegistrationStore
	payments      PaymentStore
	messages      ContactStore
}

func NewAdminService(regs RegistrationStore, pays PaymentStore, msgs ContactStore) *AdminService {
	return &AdminService{registrations: regs, payments: pays, messages: msgs}
}

func (s *AdminService) Registrations(ctx context.Context) ([]model.Registration, error) {
	out, err := s.registrations.List(ctx)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch registrations", err)
	}
	return out, nil
}

func (s *AdminService) Messages(ctx context.Context) ([]model.ContactMessage, error) {
	out, err := s.messages.List(ctx)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch messages", err)
	}
	return out, nil
}

func (s *AdminService) Payments(ctx context.Context) ([]model.Payment, error) {
	out, err := s.payments.List(ctx)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch payments", err)
	}
	return out, nil
}
