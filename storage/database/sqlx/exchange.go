package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/exchange"
)

const exchangeColumns = `id, requester_id, receiver_id, message, teaching_skill, learning_skill, status,
	created_at, updated_at`

type exchangeRow struct {
	ID            string    `db:"id"`
	RequesterID   string    `db:"requester_id"`
	ReceiverID    string    `db:"receiver_id"`
	Message       string    `db:"message"`
	TeachingSkill string    `db:"teaching_skill"`
	LearningSkill string    `db:"learning_skill"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r exchangeRow) toRequest() exchange.Request {
	req := exchange.Request(r)
	req.CreatedAt = r.CreatedAt.UTC()
	req.UpdatedAt = r.UpdatedAt.UTC()
	return req
}

func toRequests(rows []exchangeRow) []exchange.Request {
	reqs := make([]exchange.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.toRequest())
	}
	return reqs
}

type exchangeRepository struct {
	db *sqlx.DB
}

var _ exchange.Repository = (*exchangeRepository)(nil) // interface compliance check

func NewExchangeRepository(db *sqlx.DB) exchange.Repository {
	return &exchangeRepository{db: db}
}

func (repo *exchangeRepository) CreateRequest(ctx context.Context, r exchange.Request) (exchange.Request, error) {
	r.ID = newID()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO exchange_requests (`+exchangeColumns+`) VALUES (:id, :requester_id, :receiver_id, :message,
		:teaching_skill, :learning_skill, :status, :created_at, :updated_at)`,
		exchangeRow(r),
	)
	if err != nil {
		return exchange.Request{}, errors.Wrap(err, "inserting exchange request")
	}
	return r, nil
}

func (repo *exchangeRepository) GetRequest(ctx context.Context, id string) (exchange.Request, error) {
	if !isUUID(id) {
		return exchange.Request{}, exchange.ErrNotFound
	}
	var row exchangeRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+exchangeColumns+" FROM exchange_requests WHERE id = $1", id); err != nil {
		if noRows(err) {
			return exchange.Request{}, exchange.ErrNotFound
		}
		return exchange.Request{}, errors.Wrap(err, "selecting exchange request")
	}
	return row.toRequest(), nil
}

func (repo *exchangeRepository) QueryRequests(
	ctx context.Context, userID string, filter exchange.QueryFilter,
) ([]exchange.Request, int, error) {
	w := &where{}
	w.add("(requester_id = ? OR receiver_id = ?)", userID, userID)
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM exchange_requests"+w.String(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting exchange requests")
	}
	var rows []exchangeRow
	limit, offset := w.arg(filter.Limit), w.arg(filter.Offset())
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+exchangeColumns+" FROM exchange_requests"+w.String()+
			" ORDER BY created_at DESC LIMIT "+limit+" OFFSET "+offset,
		w.args...,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "selecting exchange requests")
	}
	return toRequests(rows), total, nil
}

func (repo *exchangeRepository) UpdateRequest(ctx context.Context, r exchange.Request) (exchange.Request, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE exchange_requests SET message = :message, status = :status, updated_at = :updated_at WHERE id = :id`,
		exchangeRow(r),
	)
	if err != nil {
		return exchange.Request{}, errors.Wrap(err, "updating exchange request")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return exchange.Request{}, exchange.ErrNotFound
	}
	return r, nil
}

func (repo *exchangeRepository) HasPendingRequest(ctx context.Context, requesterID, receiverID string) (bool, error) {
	var found bool
	err := repo.db.GetContext(ctx, &found,
		`SELECT EXISTS (SELECT 1 FROM exchange_requests WHERE requester_id = $1 AND receiver_id = $2 AND status = $3)`,
		requesterID, receiverID, exchange.StatusPending,
	)
	return found, errors.Wrap(err, "checking pending exchange requests")
}

func (repo *exchangeRepository) GetLatestRequestBetween(ctx context.Context, userA, userB string) (exchange.Request, error) {
	if !isUUID(userA) || !isUUID(userB) {
		return exchange.Request{}, exchange.ErrNotFound
	}
	var row exchangeRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+exchangeColumns+` FROM exchange_requests
		WHERE (requester_id = $1 AND receiver_id = $2) OR (requester_id = $2 AND receiver_id = $1)
		ORDER BY created_at DESC LIMIT 1`,
		userA, userB,
	)
	if err != nil {
		if noRows(err) {
			return exchange.Request{}, exchange.ErrNotFound
		}
		return exchange.Request{}, errors.Wrap(err, "selecting latest exchange request")
	}
	return row.toRequest(), nil
}

func (repo *exchangeRepository) ListPartnerIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT CASE WHEN requester_id = $1 THEN receiver_id ELSE requester_id END
		FROM exchange_requests WHERE requester_id = $1 OR receiver_id = $1`,
		userID,
	)
	return ids, errors.Wrap(err, "selecting exchange partners")
}

func (repo *exchangeRepository) CountRequests(ctx context.Context, userID, status, role string) (int, error) {
	w := &where{}
	switch role {
	case exchange.RoleRequester:
		w.add("requester_id = ?", userID)
	case exchange.RoleReceiver:
		w.add("receiver_id = ?", userID)
	default:
		w.add("(requester_id = ? OR receiver_id = ?)", userID, userID)
	}
	w.add("status = ?", status)

	var n int
	err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM exchange_requests"+w.String(), w.args...)
	return n, errors.Wrap(err, "counting exchange requests")
}

func (repo *exchangeRepository) SkillCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Skill string `db:"skill"`
		Count int    `db:"count"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT skill, COUNT(*) AS count FROM (
			SELECT teaching_skill AS skill FROM exchange_requests
			UNION ALL
			SELECT learning_skill AS skill FROM exchange_requests
		) skills GROUP BY skill`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "counting exchanged skills")
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Skill] = r.Count
	}
	return counts, nil
}
