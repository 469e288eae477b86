package model

import "time"

// ContactMessage is a message left through the public contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Message   string    `json:"message"`
	UserAgent *string   `json:"userAgent,omitempty"`
	IP        *string   `json:"ip,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
