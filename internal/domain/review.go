package domain

import "time"

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 1000
)

type Review struct {
	ID        string
	OrderID   string
	ClientID  string
	CompanyID string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Card is the slice of a company's service card the engine needs.
type Card struct {
	ID        string
	CompanyID string
	Price     int64
	UpdatedAt time.Time
}
