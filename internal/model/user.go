package model

import "time"

// RoleAdmin is the only role accepted by the admin read endpoints.
const RoleAdmin = "ADMIN"

// User is an organizer account able to sign in to the admin view.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – role name checked by RequireRole (ADMIN).
//	IsActive     – inactive accounts cannot sign in.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
