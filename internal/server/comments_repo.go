package server

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// errBadParent means replyToId names no comment of the same token.
var errBadParent = errors.New("replyToId does not reference a comment on this token")

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsertToken(ctx context.Context, q execQuerier, address string, now time.Time) (int64, error) {
	if _, err := q.ExecContext(ctx, `
INSERT INTO tokens (address,created_at) VALUES (?,?)
ON CONFLICT(address) DO NOTHING
`, address, now.Format(time.RFC3339Nano)); err != nil {
		return 0, err
	}
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM tokens WHERE address=?`, address).Scan(&id)
	return id, err
}

func (s *Server) tokenID(ctx context.Context, address string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM tokens WHERE address=?`, address).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// insertComment upserts the token and stores the comment in one transaction.
func (s *Server) insertComment(ctx context.Context, req createCommentRequest, now time.Time) (Comment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Comment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	tokenID, err := upsertToken(ctx, tx, req.TokenAddress, now)
	if err != nil {
		return Comment{}, err
	}
	if req.ReplyToID != nil {
		var parentToken int64
		err := tx.QueryRowContext(ctx, `SELECT token_id FROM comments WHERE id=?`, *req.ReplyToID).Scan(&parentToken)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && parentToken != tokenID) {
			return Comment{}, errBadParent
		}
		if err != nil {
			return Comment{}, err
		}
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO comments (token_id,user_address,text,reply_to_id,created_at)
VALUES (?,?,?,?,?)
`, tokenID, req.UserAddress, req.Text, req.ReplyToID, now.Format(time.RFC3339Nano))
	if err != nil {
		return Comment{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return Comment{}, err
	}
	return Comment{
		ID:           id,
		Text:         req.Text,
		TokenAddress: req.TokenAddress,
		UserAddress:  req.UserAddress,
		ReplyToID:    req.ReplyToID,
		CreatedAt:    now,
	}, nil
}

// listComments returns every comment of the token, oldest first, each with
// its direct replies.
func (s *Server) listComments(ctx context.Context, tokenID int64, tokenAddress string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,user_address,text,reply_to_id,created_at
FROM comments WHERE token_id=? ORDER BY created_at ASC, id ASC
`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []Comment
	for rows.Next() {
		var (
			c       Comment
			replyTo sql.NullInt64
			created string
		)
		if err := rows.Scan(&c.ID, &c.UserAddress, &c.Text, &replyTo, &created); err != nil {
			return nil, err
		}
		if replyTo.Valid {
			v := replyTo.Int64
			c.ReplyToID = &v
		}
		c.TokenAddress = tokenAddress
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		all = append(all, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	replies := make(map[int64][]Comment)
	for _, c := range all {
		if c.ReplyToID != nil {
			replies[*c.ReplyToID] = append(replies[*c.ReplyToID], c)
		}
	}
	out := make([]Comment, 0, len(all))
	for _, c := range all {
		c.Replies = replies[c.ID]
		out = append(out, c)
	}
	return out, nil
}
