package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles.
const (
	RoleCustomer = "CUSTOMER"
	RoleManager  = "MANAGER"
)

// User represents a registered customer or manager.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Password       string    `json:"-"` // bcrypt hash, never serialized
	Role           string    `json:"role"`
	TelegramChatID *int64    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// IsManager reports whether the user holds the administrator authority.
func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

// Principal is the authenticated caller of a service operation.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsManager() bool {
	return p.Role == RoleManager
}

// RegisterRequest is the validated input for creating a customer account.
type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	RepeatPassword string `json:"repeatPassword" validate:"required,eqfield=Password"`
	FirstName      string `json:"firstName" validate:"required,max=100"`
	LastName       string `json:"lastName" validate:"required,max=100"`
}

// LoginRequest is the validated input for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// LoginResponse is the API response after successful login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// LinkTelegramRequest binds a Telegram chat to the current user.
type LinkTelegramRequest struct {
	ChatID int64 `json:"chatId" validate:"required"`
}

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserResponse is the safe API response for a user (no password).
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Role           string    `json:"role"`
	TelegramLinked bool      `json:"telegramLinked"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ToResponse strips credentials from a user.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		TelegramLinked: u.TelegramChatID != nil,
		CreatedAt:      u.CreatedAt,
	}
}

// NewUserID generates a new UUID for a user.
func NewUserID() string {
	return uuid.New().String()
}
