package domain

import "time"

// GenerationRecord is one persisted generation history entry. ResultJSON holds
// the full ListingBundle as stored; ProductType and Brand are denormalized for
// cheap list views.
type GenerationRecord struct {
	ID          string
	UserID      string
	Lang        Lang
	Hint        string
	ImageCount  int
	ImageKeys   []string
	ResultJSON  []byte
	ProductType string
	Brand       string
	ElapsedMS   int64
	CreatedAt   time.Time
}

// GenerationSummary is the list-view projection of a GenerationRecord.
type GenerationSummary struct {
	ID          string
	Lang        Lang
	Hint        string
	ImageCount  int
	ProductType string
	Brand       string
	ElapsedMS   int64
	CreatedAt   time.Time
}
