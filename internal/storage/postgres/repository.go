package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/guregu/null"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/utils"
)

const (
	paymentSessionsTable = "payment_sessions"
	ideasTable           = "ideas"

	uniqueViolation = "23505"
)

var sessionColumns = []string{
	"payment_ref", "draft_id", "user_id", "amount", "currency", "pay_url", "status", "payload",
	"idea_id", "submission_attempts", "last_error", "confirmed_at", "created_at", "updated_at",
}

var ideaColumns = []string{
	"id", "user_id", "payment_ref", "title", "description", "category", "status", "additional_data", "created_at",
}

type postgresRepo struct {
	tx      *PostgresTransactor
	builder squirrel.StatementBuilderType
}

func NewPostgresRepo(tx *PostgresTransactor) domain.Repository {
	return &postgresRepo{tx: tx, builder: newBuilder()}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (r *postgresRepo) insertSessionQuery(s *domain.PaymentSession) (string, []interface{}, error) {
	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("encode payload: %w", err)
	}
	return r.builder.Insert(paymentSessionsTable).
		Columns("payment_ref", "draft_id", "user_id", "amount", "currency", "pay_url", "status", "payload").
		Values(s.PaymentRef, s.DraftID, s.UserID, s.Amount, s.Currency, s.PayURL, string(s.Status), string(payload)).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
}

func (r *postgresRepo) InsertPaymentSession(ctx context.Context, s *domain.PaymentSession) error {
	query, args, err := r.insertSessionQuery(s)
	if err != nil {
		return err
	}

	err = r.tx.DB(ctx).QueryRow(ctx, query, args...).Scan(&s.CreatedAt, &s.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert payment session %s: %w", s.PaymentRef, err)
	}
	return nil
}

func (r *postgresRepo) selectSessionQuery(paymentRef string, forUpdate bool) (string, []interface{}, error) {
	q := r.builder.Select(sessionColumns...).
		From(paymentSessionsTable).
		Where(squirrel.Eq{"payment_ref": paymentRef})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q.ToSql()
}

func (r *postgresRepo) getSession(ctx context.Context, paymentRef string, forUpdate bool) (*domain.PaymentSession, error) {
	query, args, err := r.selectSessionQuery(paymentRef, forUpdate)
	if err != nil {
		return nil, err
	}

	s, err := scanSession(r.tx.DB(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("get payment session %s: %w", paymentRef, notFound(err))
	}
	return s, nil
}

func (r *postgresRepo) GetPaymentSession(ctx context.Context, paymentRef string) (*domain.PaymentSession, error) {
	return r.getSession(ctx, paymentRef, false)
}

func (r *postgresRepo) LockPaymentSession(ctx context.Context, paymentRef string) (*domain.PaymentSession, error) {
	return r.getSession(ctx, paymentRef, true)
}

func (r *postgresRepo) updateStatusQuery(paymentRef string, status domain.PaymentStatus, lastError null.String) (string, []interface{}, error) {
	q := r.builder.Update(paymentSessionsTable).
		Set("status", string(status)).
		Set("last_error", utils.NullStringToSQL(lastError)).
		Set("updated_at", squirrel.Expr("now()"))
	if status == domain.PaymentStatusCompleted {
		q = q.Set("confirmed_at", squirrel.Expr("now()"))
	}
	return q.Where(squirrel.Eq{
		"payment_ref": paymentRef,
		"status":      string(domain.PaymentStatusPending),
	}).ToSql()
}

func (r *postgresRepo) UpdatePaymentStatus(ctx context.Context, paymentRef string, status domain.PaymentStatus, lastError null.String) (bool, error) {
	query, args, err := r.updateStatusQuery(paymentRef, status, lastError)
	if err != nil {
		return false, err
	}

	tag, err := r.tx.DB(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update payment status %s: %w", paymentRef, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresRepo) confirmLateQuery(paymentRef string) (string, []interface{}, error) {
	return r.builder.Update(paymentSessionsTable).
		Set("status", string(domain.PaymentStatusCompleted)).
		Set("last_error", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Set("confirmed_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"payment_ref": paymentRef,
			"status":      []string{string(domain.PaymentStatusTimeout), string(domain.PaymentStatusCancelled)},
		}).ToSql()
}

func (r *postgresRepo) ConfirmLatePayment(ctx context.Context, paymentRef string) (bool, error) {
	query, args, err := r.confirmLateQuery(paymentRef)
	if err != nil {
		return false, err
	}

	tag, err := r.tx.DB(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("confirm late payment %s: %w", paymentRef, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresRepo) SetPaymentIdea(ctx context.Context, paymentRef, ideaID string) error {
	query, args, err := r.builder.Update(paymentSessionsTable).
		Set("idea_id", ideaID).
		Set("last_error", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"payment_ref": paymentRef}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.tx.DB(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("link idea to payment %s: %w", paymentRef, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) submissionFailureQuery(paymentRef, message string) (string, []interface{}, error) {
	return r.builder.Update(paymentSessionsTable).
		Set("submission_attempts", squirrel.Expr("submission_attempts + 1")).
		Set("last_error", message).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"payment_ref": paymentRef}).
		ToSql()
}

func (r *postgresRepo) RecordSubmissionFailure(ctx context.Context, paymentRef, message string) error {
	query, args, err := r.submissionFailureQuery(paymentRef, message)
	if err != nil {
		return err
	}

	if _, err := r.tx.DB(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("record submission failure %s: %w", paymentRef, err)
	}
	return nil
}

func (r *postgresRepo) ListPaymentSessionsByUser(ctx context.Context, userID string) ([]*domain.PaymentSession, error) {
	query, args, err := r.builder.Select(sessionColumns...).
		From(paymentSessionsTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.tx.DB(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*domain.PaymentSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *postgresRepo) insertIdeaQuery(idea *domain.Idea) (string, []interface{}, error) {
	data, err := json.Marshal(idea.AdditionalData)
	if err != nil {
		return "", nil, fmt.Errorf("encode additional data: %w", err)
	}
	return r.builder.Insert(ideasTable).
		Columns(ideaColumns...).
		Values(idea.ID, idea.UserID, idea.PaymentRef, idea.Title, idea.Description, idea.Category,
			idea.Status, string(data), idea.CreatedAt).
		Suffix("ON CONFLICT (payment_ref) DO NOTHING").
		ToSql()
}

func (r *postgresRepo) InsertIdea(ctx context.Context, idea *domain.Idea) (bool, error) {
	query, args, err := r.insertIdeaQuery(idea)
	if err != nil {
		return false, err
	}

	tag, err := r.tx.DB(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert idea for payment %s: %w", idea.PaymentRef, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresRepo) getIdea(ctx context.Context, where squirrel.Eq) (*domain.Idea, error) {
	query, args, err := r.builder.Select(ideaColumns...).From(ideasTable).Where(where).ToSql()
	if err != nil {
		return nil, err
	}

	idea, err := scanIdea(r.tx.DB(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("get idea: %w", notFound(err))
	}
	return idea, nil
}

func (r *postgresRepo) GetIdeaByID(ctx context.Context, id string) (*domain.Idea, error) {
	return r.getIdea(ctx, squirrel.Eq{"id": id})
}

func (r *postgresRepo) GetIdeaByPaymentRef(ctx context.Context, paymentRef string) (*domain.Idea, error) {
	return r.getIdea(ctx, squirrel.Eq{"payment_ref": paymentRef})
}

func (r *postgresRepo) ListIdeasByUser(ctx context.Context, userID string) ([]*domain.Idea, error) {
	query, args, err := r.builder.Select(ideaColumns...).
		From(ideasTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.tx.DB(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	defer rows.Close()

	ideas := make([]*domain.Idea, 0)
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

func scanSession(row scanner) (*domain.PaymentSession, error) {
	var (
		s           domain.PaymentSession
		status      string
		payload     []byte
		ideaID      sql.NullString
		lastError   sql.NullString
		confirmedAt sql.NullTime
	)
	err := row.Scan(&s.PaymentRef, &s.DraftID, &s.UserID, &s.Amount, &s.Currency, &s.PayURL, &status, &payload,
		&ideaID, &s.Attempts, &lastError, &confirmedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.Status = domain.PaymentStatus(status)
	s.IdeaID = utils.SqlToNullString(ideaID)
	s.LastError = utils.SqlToNullString(lastError)
	s.ConfirmedAt = utils.SqlToNullsTime(confirmedAt)
	if len(payload) > 0 && string(payload) != "null" {
		s.Payload = &domain.IdeaSubmission{}
		if err := json.Unmarshal(payload, s.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", s.PaymentRef, err)
		}
	}
	return &s, nil
}

func scanIdea(row scanner) (*domain.Idea, error) {
	var (
		idea domain.Idea
		data []byte
	)
	err := row.Scan(&idea.ID, &idea.UserID, &idea.PaymentRef, &idea.Title, &idea.Description, &idea.Category,
		&idea.Status, &data, &idea.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &idea.AdditionalData); err != nil {
		return nil, fmt.Errorf("decode idea %s: %w", idea.ID, err)
	}
	return &idea, nil
}
