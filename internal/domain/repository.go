package domain

import "context"

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// HistoryRepository persists generation history entries.
type HistoryRepository interface {
	Save(ctx context.Context, rec *GenerationRecord) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]GenerationSummary, error)
	GetByID(ctx context.Context, id, userID string) (*GenerationRecord, error)
	Delete(ctx context.Context, id, userID string) error
}
