package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/mathieu-neron/packprice/packprice-go/internal/db"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// SQLSTATE for a foreign key violation
const foreignKeyViolation = "23503"

type PriceRepo struct {
	pool db.Pool
}

func NewPriceRepo(pool db.Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

const priceColumns = `p.id, p.item_id, p.store_id, p.price::text, p.quantity, p.date_purchased,
		       p.confidence, p.ip_address, p.verified, p.flagged_count, p.created_at, p.updated_at`

// Create inserts a new price. The price is truncated to two decimals before
// it is written. ID and timestamps are filled in on p.
func (r *PriceRepo) Create(ctx context.Context, p *model.PriceRecord) error {
	p.Price = model.TruncatePrice(p.Price)
	if p.Quantity <= 0 {
		p.Quantity = 1
	}
	if p.Confidence == "" {
		p.Confidence = model.ConfidenceMedium
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO prices (item_id, store_id, price, quantity, date_purchased, confidence, ip_address)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.ItemID, p.StoreID, p.Price.StringFixed(model.PricePlaces), p.Quantity,
		p.DatePurchased, string(p.Confidence), p.IPAddress,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrap(err, "price_repo: insert price")
	}
	return nil
}

// isForeignKeyViolation reports whether err is a Postgres foreign key
// violation, i.e. a referenced item or store does not exist.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// ListWithVotes returns every price for an item together with its vote tally.
func (r *PriceRepo) ListWithVotes(ctx context.Context, itemID int64) ([]model.PriceWithVotes, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+priceColumns+`,
		       COUNT(v.id) FILTER (WHERE v.is_correct_price)     AS upvotes,
		       COUNT(v.id) FILTER (WHERE NOT v.is_correct_price) AS downvotes
		FROM prices p
		LEFT JOIN votes v ON v.price_id = p.id
		WHERE p.item_id = $1
		GROUP BY p.id
		ORDER BY p.id`,
		itemID)
	if err != nil {
		return nil, eris.Wrap(err, "price_repo: list prices with votes")
	}
	defer rows.Close()

	var out []model.PriceWithVotes
	for rows.Next() {
		var pv model.PriceWithVotes
		var priceText, confidence string
		err := rows.Scan(
			&pv.Price.ID, &pv.Price.ItemID, &pv.Price.StoreID, &priceText, &pv.Price.Quantity,
			&pv.Price.DatePurchased, &confidence, &pv.Price.IPAddress, &pv.Price.Verified,
			&pv.Price.FlaggedCount, &pv.Price.CreatedAt, &pv.Price.UpdatedAt,
			&pv.Votes.Upvotes, &pv.Votes.Downvotes,
		)
		if err != nil {
			return nil, eris.Wrap(err, "price_repo: scan price")
		}
		pv.Price.Price, err = decimal.NewFromString(priceText)
		if err != nil {
			return nil, eris.Wrapf(err, "price_repo: parse price %q", priceText)
		}
		pv.Price.Confidence = model.Confidence(confidence)
		out = append(out, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "price_repo: iterate prices")
	}
	return out, nil
}

// IPHistory returns the all-time submission aggregate for an IP address,
// including the votes cast on its prices.
func (r *PriceRepo) IPHistory(ctx context.Context, ip string) (model.IPHistory, error) {
	var h model.IPHistory
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*)                                    AS total_submissions,
			MIN(p.created_at)                           AS oldest_submission,
			COUNT(*) FILTER (WHERE p.flagged_count > 0) AS flagged_submissions,
			(SELECT COUNT(*) FROM votes v JOIN prices vp ON vp.id = v.price_id
			  WHERE vp.ip_address = $1 AND v.is_correct_price)     AS upvotes,
			(SELECT COUNT(*) FROM votes v JOIN prices vp ON vp.id = v.price_id
			  WHERE vp.ip_address = $1 AND NOT v.is_correct_price) AS downvotes
		FROM prices p
		WHERE p.ip_address = $1`,
		ip).Scan(&h.TotalSubmissions, &h.OldestSubmission, &h.FlaggedSubmissions, &h.Upvotes, &h.Downvotes)
	if err != nil {
		return model.IPHistory{}, eris.Wrap(err, "price_repo: ip history")
	}
	return h, nil
}

// RecentActivity returns the submission aggregate for an IP address since
// the given time.
func (r *PriceRepo) RecentActivity(ctx context.Context, ip string, since time.Time) (model.RecentActivity, error) {
	var a model.RecentActivity
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*)                                  AS submissions,
			COUNT(DISTINCT item_id)                   AS distinct_items,
			COUNT(DISTINCT price)                     AS distinct_prices,
			COUNT(*) FILTER (WHERE flagged_count > 0) AS flagged
		FROM prices
		WHERE ip_address = $1 AND created_at >= $2`,
		ip, since).Scan(&a.Submissions, &a.DistinctItems, &a.DistinctPrices, &a.Flagged)
	if err != nil {
		return model.RecentActivity{}, eris.Wrap(err, "price_repo: recent activity")
	}
	return a, nil
}

// IncrementFlaggedCount atomically bumps flagged_count and returns the new
// count and the submitter ip. Returns ErrNotFound for unknown prices.
func (r *PriceRepo) IncrementFlaggedCount(ctx context.Context, priceID int64) (int, *string, error) {
	var count int
	var ip *string
	err := r.pool.QueryRow(ctx, `
		UPDATE prices
		SET flagged_count = flagged_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING flagged_count, ip_address`,
		priceID).Scan(&count, &ip)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, eris.Wrap(err, "price_repo: increment flagged count")
	}
	return count, ip, nil
}

// ItemIDsWithPrices returns the ids of every item that has at least one price.
func (r *PriceRepo) ItemIDsWithPrices(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT item_id FROM prices ORDER BY item_id`)
	if err != nil {
		return nil, eris.Wrap(err, "price_repo: list item ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "price_repo: scan item id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "price_repo: iterate item ids")
	}
	return ids, nil
}

// UpdateSmartScores persists precomputed smart scores in one transaction.
func (r *PriceRepo) UpdateSmartScores(ctx context.Context, ranked []model.RankedPrice) (int64, error) {
	if len(ranked) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "price_repo: begin smart score tx")
	}
	defer tx.Rollback(ctx)

	var updated int64
	for _, rp := range ranked {
		tag, err := tx.Exec(ctx, `UPDATE prices SET smart_score = $1 WHERE id = $2`, rp.SmartScore, rp.ID)
		if err != nil {
			return 0, eris.Wrapf(err, "price_repo: update smart score for price %d", rp.ID)
		}
		updated += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "price_repo: commit smart scores")
	}
	return updated, nil
}

// ItemStats aggregates the price-per-unit distribution of an item.
func (r *PriceRepo) ItemStats(ctx context.Context, itemID int64) (*model.ItemPriceStats, error) {
	stats := &model.ItemPriceStats{
		ItemID:              itemID,
		ConfidenceBreakdown: make(map[model.Confidence]int),
	}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			AVG(price / GREATEST(quantity, 1))::float8,
			MIN(price / GREATEST(quantity, 1))::float8,
			MAX(price / GREATEST(quantity, 1))::float8,
			STDDEV(price / GREATEST(quantity, 1))::float8
		FROM prices
		WHERE item_id = $1`,
		itemID).Scan(&stats.Count, &stats.AvgPricePerUnit, &stats.MinPricePerUnit,
		&stats.MaxPricePerUnit, &stats.StdDevPricePerUnit)
	if err != nil {
		return nil, eris.Wrap(err, "price_repo: item stats")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT confidence, COUNT(*)
		FROM prices
		WHERE item_id = $1
		GROUP BY confidence`,
		itemID)
	if err != nil {
		return nil, eris.Wrap(err, "price_repo: confidence breakdown")
	}
	defer rows.Close()

	for rows.Next() {
		var conf string
		var count int
		if err := rows.Scan(&conf, &count); err != nil {
			return nil, eris.Wrap(err, "price_repo: scan confidence breakdown")
		}
		stats.ConfidenceBreakdown[model.Confidence(conf)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "price_repo: iterate confidence breakdown")
	}
	return stats, nil
}
