package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/carsharing/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cipher encrypts column values at rest. aad binds a value to its row.
type Cipher interface {
	Encrypt(plaintext, aad []byte) (string, error)
	Decrypt(encoded string, aad []byte) ([]byte, error)
}

const userColumns = `id, email, first_name, last_name, password, role, telegram_chat_id, created_at, updated_at`

// UserRepository handles database operations for users. The Telegram chat id
// is stored encrypted.
type UserRepository struct {
	db     *pgxpool.Pool
	cipher Cipher
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool, cipher Cipher) *UserRepository {
	return &UserRepository{db: db, cipher: cipher}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	chatID, err := r.encryptChatID(u.ID, u.TelegramChatID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, email, first_name, last_name, password, role, telegram_chat_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = conn(ctx, r.db).Exec(ctx, query,
		u.ID, u.Email, u.FirstName, u.LastName, u.Password, u.Role, chatID, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_deleted = FALSE`
	return r.scanOne(ctx, query, email)
}

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_deleted = FALSE`
	return r.scanOne(ctx, query, id)
}

// Exists checks if a user with the given email already exists.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// SetTelegramChatID links a Telegram chat to the user.
func (r *UserRepository) SetTelegramChatID(ctx context.Context, id string, chatID int64) error {
	enc, err := r.encryptChatID(id, &chatID)
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.db).Exec(ctx,
		`UPDATE users SET telegram_chat_id = $1, updated_at = NOW() WHERE id = $2`, enc, id)
	if err != nil {
		return fmt.Errorf("failed to link telegram chat: %w", err)
	}
	return nil
}

func (r *UserRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var (
		u      domain.User
		chatID *string
	)
	err := conn(ctx, r.db).QueryRow(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Password, &u.Role, &chatID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if chatID != nil {
		id, err := r.decryptChatID(u.ID, *chatID)
		if err != nil {
			return nil, err
		}
		u.TelegramChatID = &id
	}
	return &u, nil
}

func chatIDLabel(userID string) []byte {
	return []byte("users.telegram_chat_id:" + userID)
}

func (r *UserRepository) encryptChatID(userID string, chatID *int64) (*string, error) {
	if chatID == nil {
		return nil, nil
	}
	enc, err := r.cipher.Encrypt([]byte(strconv.FormatInt(*chatID, 10)), chatIDLabel(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt telegram chat id: %w", err)
	}
	return &enc, nil
}

func (r *UserRepository) decryptChatID(userID, encoded string) (int64, error) {
	plain, err := r.cipher.Decrypt(encoded, chatIDLabel(userID))
	if err != nil {
		return 0, fmt.Errorf("failed to decrypt telegram chat id: %w", err)
	}
	id, err := strconv.ParseInt(string(plain), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse telegram chat id: %w", err)
	}
	return id, nil
}
