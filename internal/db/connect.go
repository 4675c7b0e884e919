package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:studiva.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/studiva?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  class_id TEXT,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  teacher_id TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  class_id TEXT NOT NULL,
  topic TEXT NOT NULL,
  type TEXT NOT NULL,                -- mcq|true_false|essay
  duration_minutes INTEGER NOT NULL,
  max_attempts INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  available_from INTEGER,
  available_until INTEGER,
  visible_to TEXT NOT NULL DEFAULT '[]', -- JSON array of student ids; empty = everyone
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  text TEXT NOT NULL,
  type TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  answer TEXT NOT NULL DEFAULT '',
  max_score INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL DEFAULT 0,
  attempt_number INTEGER NOT NULL,
  status TEXT NOT NULL,              -- completed|pending_review|graded
  started_at INTEGER NOT NULL,
  ended_at INTEGER NOT NULL,
  created_at INTEGER NOT NULL,
  UNIQUE (quiz_id, user_id, attempt_number)
);

CREATE TABLE IF NOT EXISTS quiz_answers (
  id TEXT PRIMARY KEY,
  result_id TEXT NOT NULL REFERENCES results(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  answer TEXT NOT NULL,
  is_correct INTEGER,                -- NULL for essay answers
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS essay_submissions (
  id TEXT PRIMARY KEY,
  result_id TEXT NOT NULL REFERENCES results(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  student_answer TEXT NOT NULL,
  max_score INTEGER NOT NULL,
  teacher_score INTEGER,
  teacher_feedback TEXT,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_weights (
  class_id TEXT PRIMARY KEY,
  mcq_weight INTEGER NOT NULL DEFAULT 0,
  true_false_weight INTEGER NOT NULL DEFAULT 0,
  essay_weight INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS proctor_events (
  "offset" INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  quiz_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  result_id TEXT,
  event_type TEXT NOT NULL,                 -- tab_switch|copy_paste|submission
  details TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  class_id TEXT,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  teacher_id TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  class_id TEXT NOT NULL,
  topic TEXT NOT NULL,
  type TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL,
  max_attempts INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  available_from BIGINT,
  available_until BIGINT,
  visible_to TEXT NOT NULL DEFAULT '[]',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  text TEXT NOT NULL,
  type TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  answer TEXT NOT NULL DEFAULT '',
  max_score INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL DEFAULT 0,
  attempt_number INTEGER NOT NULL,
  status TEXT NOT NULL,
  started_at BIGINT NOT NULL,
  ended_at BIGINT NOT NULL,
  created_at BIGINT NOT NULL,
  UNIQUE (quiz_id, user_id, attempt_number)
);

CREATE TABLE IF NOT EXISTS quiz_answers (
  id TEXT PRIMARY KEY,
  result_id TEXT NOT NULL REFERENCES results(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  answer TEXT NOT NULL,
  is_correct INTEGER,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS essay_submissions (
  id TEXT PRIMARY KEY,
  result_id TEXT NOT NULL REFERENCES results(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  student_answer TEXT NOT NULL,
  max_score INTEGER NOT NULL,
  teacher_score INTEGER,
  teacher_feedback TEXT,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_weights (
  class_id TEXT PRIMARY KEY,
  mcq_weight INTEGER NOT NULL DEFAULT 0,
  true_false_weight INTEGER NOT NULL DEFAULT 0,
  essay_weight INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS proctor_events (
  "offset" BIGSERIAL PRIMARY KEY,
  quiz_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  result_id TEXT,
  event_type TEXT NOT NULL,
  details TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);
`
