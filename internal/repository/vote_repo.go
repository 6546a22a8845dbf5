package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/mathieu-neron/packprice/packprice-go/internal/db"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

type VoteRepo struct {
	pool db.Pool
}

func NewVoteRepo(pool db.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

// Create records a vote on a price and returns the new vote id. Returns
// ErrNotFound when the price does not exist.
func (r *VoteRepo) Create(ctx context.Context, priceID int64, isCorrect bool, ip *string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "vote_repo: begin tx")
	}
	defer tx.Rollback(ctx)

	// Lock the price row so a concurrent delete cannot orphan the vote
	var lockedID int64
	err = tx.QueryRow(ctx, `SELECT id FROM prices WHERE id = $1 FOR UPDATE`, priceID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, eris.Wrap(err, "vote_repo: lock price")
	}

	var voteID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO votes (price_id, is_correct_price, ip_address)
		VALUES ($1, $2, $3)
		RETURNING id`,
		priceID, isCorrect, ip).Scan(&voteID)
	if err != nil {
		return 0, eris.Wrap(err, "vote_repo: insert vote")
	}

	_, err = tx.Exec(ctx, `UPDATE prices SET updated_at = NOW() WHERE id = $1`, priceID)
	if err != nil {
		return 0, eris.Wrap(err, "vote_repo: touch price")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "vote_repo: commit")
	}
	return voteID, nil
}

// Tally returns the up/down vote counts for a price.
func (r *VoteRepo) Tally(ctx context.Context, priceID int64) (model.VoteTally, error) {
	var t model.VoteTally
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE is_correct_price),
			COUNT(*) FILTER (WHERE NOT is_correct_price)
		FROM votes
		WHERE price_id = $1`,
		priceID).Scan(&t.Upvotes, &t.Downvotes)
	if err != nil {
		return model.VoteTally{}, eris.Wrap(err, "vote_repo: tally")
	}
	return t, nil
}
