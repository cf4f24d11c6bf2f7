package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veresk/storyforge/internal/domain"
)

// SessionRepo — репозиторий сохранённых сессий.
//
// Сессия перезаписывается целиком: промпты, ассет и настройки хранятся
// одним JSON-снимком, без версионирования.
type SessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo создаёт новый SessionRepo.
func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// Save сохраняет сессию, перезаписывая существующую с тем же ID.
func (r *SessionRepo) Save(ctx context.Context, session *domain.Session) error {
	assetJSON, err := json.Marshal(session.Asset)
	if err != nil {
		return fmt.Errorf("marshal asset: %w", err)
	}
	settingsJSON, err := json.Marshal(session.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `
		INSERT INTO sessions (id, prompts, asset, settings, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET prompts = $2, asset = $3, settings = $4, updated_at = NOW()
	`
	_, err = r.pool.Exec(ctx, query,
		session.ID,
		session.Prompts,
		assetJSON,
		settingsJSON,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetByID возвращает сессию по ID.
func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, prompts, asset, settings, updated_at
		FROM sessions
		WHERE id = $1
	`
	var session domain.Session
	var assetJSON, settingsJSON []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.Prompts,
		&assetJSON,
		&settingsJSON,
		&session.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	if err := json.Unmarshal(assetJSON, &session.Asset); err != nil {
		return nil, fmt.Errorf("unmarshal asset: %w", err)
	}
	if err := json.Unmarshal(settingsJSON, &session.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &session, nil
}

// List возвращает все сессии без ассетов, от свежих к старым.
func (r *SessionRepo) List(ctx context.Context) ([]domain.Session, error) {
	query := `
		SELECT id, prompts, settings, updated_at
		FROM sessions
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var session domain.Session
		var settingsJSON []byte
		if err := rows.Scan(
			&session.ID,
			&session.Prompts,
			&settingsJSON,
			&session.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal(settingsJSON, &session.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Delete удаляет сессию.
func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
