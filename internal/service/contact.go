package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/event-registration/internal/apperr"
	"github.com/iliyamo/event-registration/internal/model"
)

const maxMessageLength = 5000

type ContactInput struct {
	Name      string
	Email     string
	Phone     string
	Message   string
	UserAgent string
	IP        string
}

type ContactService struct {
	messages ContactStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewContactService(messages ContactStore, logger *slog.Logger) *ContactService {
	return &ContactService{messages: messages, logger: logger, now: nowUTC}
}

// Submit stores a contact form message and returns its id.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Message = strings.TrimSpace(in.Message)
	switch {
	case in.Name == "":
		return "", apperr.Validation("validation_error", "name is required")
	case !validEmail(in.Email):
		return "", apperr.Validation("validation_error", "Invalid email format")
	case in.Message == "":
		return "", apperr.Validation("validation_error", "message is required")
	case utf8.RuneCountInString(in.Message) > maxMessageLength:
		return "", apperr.Validation("validation_error", "message is too long")
	}

	m := &model.ContactMessage{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     optional(in.Phone),
		Message:   in.Message,
		UserAgent: optional(strings.TrimSpace(in.UserAgent)),
		IP:        optional(strings.TrimSpace(in.IP)),
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return "", apperr.Internal("Failed to send message. Please try again.", err)
	}
	s.logger.InfoContext(ctx, "contact message stored", "message_id", m.ID)
	return m.ID, nil
}
