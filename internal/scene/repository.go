package scene

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width UTC with milliseconds so TEXT columns sort by time.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Repository defines the interface for scene persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Scene, error)
	List(ctx context.Context) ([]Scene, error)
	Create(ctx context.Context, scene *Scene) error

	// Execution logging
	CreateExecution(ctx context.Context, exec *Execution) error
	ListExecutions(ctx context.Context, sceneID string, limit int) ([]Execution, error)
}

const sceneColumns = `id, name, enabled, actions, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a scene by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE id = ?`

	scene, err := scanScene(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSceneNotFound
		}
		return nil, fmt.Errorf("querying scene by id: %w", err)
	}
	return scene, nil
}

// List retrieves all scenes ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Scene, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sceneColumns+` FROM scenes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer rows.Close()

	var scenes []Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scene: %w", err)
		}
		scenes = append(scenes, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenes: %w", err)
	}
	return scenes, nil
}

// Create inserts a new scene.
func (r *SQLiteRepository) Create(ctx context.Context, scene *Scene) error {
	if err := ValidateScene(scene); err != nil {
		return err
	}

	actions := scene.Actions
	if actions == nil {
		actions = []Action{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("marshalling actions: %w", err)
	}

	now := time.Now().UTC()
	if scene.CreatedAt.IsZero() {
		scene.CreatedAt = now
	}
	scene.UpdatedAt = now

	query := `INSERT INTO scenes (` + sceneColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		scene.ID,
		scene.Name,
		boolToInt(scene.Enabled),
		string(actionsJSON),
		scene.CreatedAt.UTC().Format(timeLayout),
		scene.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSceneExists
		}
		return fmt.Errorf("inserting scene: %w", err)
	}
	return nil
}

// CreateExecution stores one execution record.
func (r *SQLiteRepository) CreateExecution(ctx context.Context, exec *Execution) error {
	query := `
		INSERT INTO scene_executions (
			id, scene_id, user_id, success, message, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	var userID sql.NullString
	if exec.UserID != "" {
		userID = sql.NullString{String: exec.UserID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		exec.ID,
		exec.SceneID,
		userID,
		boolToInt(exec.Success),
		exec.Message,
		exec.StartedAt.UTC().Format(timeLayout),
		exec.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// ListExecutions returns the most recent executions of a scene, newest first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, sceneID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, scene_id, user_id, success, message, started_at, finished_at
		FROM scene_executions
		WHERE scene_id = ?
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, sceneID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var execs []Execution
	for rows.Next() {
		var e Execution
		var userID sql.NullString
		var success int
		var startedAt, finishedAt string

		if err := rows.Scan(&e.ID, &e.SceneID, &userID, &success, &e.Message, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		e.UserID = userID.String
		e.Success = success != 0
		if e.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if e.FinishedAt, err = time.Parse(timeLayout, finishedAt); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return execs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScene(scanner rowScanner) (*Scene, error) {
	var s Scene
	var enabled int
	var actionsJSON, createdAt, updatedAt string

	if err := scanner.Scan(&s.ID, &s.Name, &enabled, &actionsJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(actionsJSON), &s.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}

	var err error
	if s.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
