package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/quarry/pkg/models"
)

// ErrRunNotFound is returned when a run ID is not in the history.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored engine run.
type Run struct {
	ID        string        `json:"id"`
	Question  string        `json:"question"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
	Stats     models.Stats  `json:"stats"`
	LLMCalls  int           `json:"llm_calls"`
	TokensIn  int64         `json:"tokens_in"`
	TokensOut int64         `json:"tokens_out"`
	Polished  bool          `json:"polished"`
	// Result is only populated by GetRun.
	Result *models.Result `json:"result,omitempty"`
}

// SaveRun inserts or replaces a run.
func (db *DB) SaveRun(r *Run) error {
	if r.ID == "" {
		return errors.New("save run: missing id")
	}
	result := r.Result
	if result == nil {
		result = &models.Result{OK: true}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO runs (id, question, created_at, duration_ms,
			questions_answered, total_generated, total_seen, rounds,
			result, llm_calls, tokens_in, tokens_out, polished)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Question, formatTime(r.CreatedAt), r.Duration.Milliseconds(),
		r.Stats.QuestionsAnswered, r.Stats.TotalGenerated, r.Stats.TotalSeen, r.Stats.Rounds,
		string(data), r.LLMCalls, r.TokensIn, r.TokensOut, r.Polished)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

const runColumns = `id, question, created_at, duration_ms,
	questions_answered, total_generated, total_seen, rounds,
	llm_calls, tokens_in, tokens_out, polished`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, extra ...any) (*Run, error) {
	var (
		r          Run
		createdAt  string
		durationMS int64
	)
	dest := []any{
		&r.ID, &r.Question, &createdAt, &durationMS,
		&r.Stats.QuestionsAnswered, &r.Stats.TotalGenerated, &r.Stats.TotalSeen, &r.Stats.Rounds,
		&r.LLMCalls, &r.TokensIn, &r.TokensOut, &r.Polished,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	r.CreatedAt, _ = parseTime(createdAt)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return &r, nil
}

// GetRun retrieves a run and its full result by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+`, result FROM runs WHERE id = ?`, id)

	var data string
	r, err := scanRun(row, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	var result models.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("decode run result: %w", err)
	}
	r.Result = &result
	return r, nil
}

// ListRuns returns the most recent runs first, without their results.
// A limit of zero or less returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
