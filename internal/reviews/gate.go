package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/congo-pay/escrow_engine/internal/domain"
	"github.com/congo-pay/escrow_engine/internal/store"
)

// Eligible reports whether a finished, not yet reviewed order can be rated.
func Eligible(order domain.Order, reviewed bool) bool {
	return order.Status == domain.StatusFinished && !reviewed
}

type SubmitInput struct {
	OrderID  string
	ClientID string
	Rating   int
	Comment  string
}

// CompanyReviews is one page of a company's reviews plus its overall average.
type CompanyReviews struct {
	Reviews       []domain.Review
	Total         int
	AverageRating float64
}

// Gate admits at most one review per finished order, from its client only.
type Gate struct {
	store store.Store
	now   func() time.Time
}

func NewGate(st store.Store) *Gate {
	return &Gate{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// CanReview reports whether the order is finished and has no review yet.
func (g *Gate) CanReview(ctx context.Context, order domain.Order) (bool, error) {
	reviewed, err := g.Reviewed(ctx, order.ID)
	if err != nil {
		return false, err
	}
	return Eligible(order, reviewed), nil
}

// Reviewed reports whether a review exists for the order.
func (g *Gate) Reviewed(ctx context.Context, orderID string) (bool, error) {
	_, err := g.store.GetReview(ctx, orderID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("Reviewed: %w", err)
	}
}

// Submit records the client's rating. Once a review exists every further
// submission fails with ErrAlreadyReviewed, whoever sends it.
func (g *Gate) Submit(ctx context.Context, in SubmitInput) (domain.Review, error) {
	var review domain.Review
	err := g.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		order, err := tx.GetOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if _, err := tx.GetReview(ctx, order.ID); err == nil {
			return domain.ErrAlreadyReviewed
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if order.ClientID != in.ClientID {
			return domain.ErrForbidden
		}
		if !Eligible(order, false) {
			return domain.ErrNotEligible
		}
		if in.Rating < domain.MinRating || in.Rating > domain.MaxRating {
			return domain.ErrInvalidRating
		}
		comment := strings.TrimSpace(in.Comment)
		if utf8.RuneCountInString(comment) > domain.MaxCommentLength {
			return fmt.Errorf("comment longer than %d characters: %w", domain.MaxCommentLength, domain.ErrInvalidRequest)
		}

		review = domain.Review{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			ClientID:  order.ClientID,
			CompanyID: order.CompanyID,
			Rating:    in.Rating,
			Comment:   comment,
			CreatedAt: g.now(),
		}
		return tx.InsertReview(ctx, review)
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("Submit: %w", err)
	}
	return review, nil
}

// ListForCompany pages through a company's reviews, newest first.
func (g *Gate) ListForCompany(ctx context.Context, companyID string, limit, offset int) (CompanyReviews, error) {
	limit, offset = store.NormalizePage(limit, offset)
	reviews, total, err := g.store.ListReviews(ctx, companyID, limit, offset)
	if err != nil {
		return CompanyReviews{}, fmt.Errorf("ListForCompany: %w", err)
	}
	summary, err := g.store.RatingSummary(ctx, companyID)
	if err != nil {
		return CompanyReviews{}, fmt.Errorf("ListForCompany: %w", err)
	}
	return CompanyReviews{Reviews: reviews, Total: total, AverageRating: summary.Average}, nil
}
