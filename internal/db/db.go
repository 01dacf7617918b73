package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database and runs schema migrations.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection keeps writes serialised and the foreign_keys pragma in effect.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return conn, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS student (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			age INTEGER NOT NULL DEFAULT 0,
			genre TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			style TEXT NOT NULL DEFAULT '',
			interests TEXT NOT NULL DEFAULT '[]',
			friends TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS storyline (
			storyline_id INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id INTEGER,
			original_request TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL CHECK(status IN ('pending','generating','generated','failed')),
			error TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(student_id) REFERENCES student(id) ON DELETE SET NULL
		);`,
		`CREATE TABLE IF NOT EXISTS question (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL CHECK(type IN ('input','select')),
			question TEXT NOT NULL,
			key TEXT NOT NULL,
			correct TEXT NOT NULL,
			answers TEXT NOT NULL DEFAULT '',
			classroom TEXT NOT NULL DEFAULT '',
			storyline_id INTEGER,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(storyline_id) REFERENCES storyline(storyline_id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS story (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			raw_content TEXT NOT NULL DEFAULT '',
			audio TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS story_question (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			story_id INTEGER NOT NULL,
			question_id INTEGER NOT NULL,
			FOREIGN KEY(story_id) REFERENCES story(id) ON DELETE CASCADE,
			FOREIGN KEY(question_id) REFERENCES question(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS storyline_step (
			storyline_step_id INTEGER PRIMARY KEY AUTOINCREMENT,
			storyline_id INTEGER NOT NULL,
			step INTEGER NOT NULL,
			story_id INTEGER NOT NULL,
			UNIQUE(storyline_id, step),
			FOREIGN KEY(storyline_id) REFERENCES storyline(storyline_id) ON DELETE CASCADE,
			FOREIGN KEY(story_id) REFERENCES story(id)
		);`,
		`CREATE TABLE IF NOT EXISTS storyline_progress (
			storyline_progress_id INTEGER PRIMARY KEY AUTOINCREMENT,
			storyline_id INTEGER NOT NULL,
			storyline_step_id INTEGER NOT NULL,
			story_question_id INTEGER NOT NULL,
			student_id INTEGER,
			answer TEXT NOT NULL DEFAULT '',
			duration INTEGER,
			score INTEGER,
			attempts INTEGER,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(storyline_id) REFERENCES storyline(storyline_id) ON DELETE CASCADE,
			FOREIGN KEY(storyline_step_id) REFERENCES storyline_step(storyline_step_id) ON DELETE CASCADE,
			FOREIGN KEY(story_question_id) REFERENCES story_question(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS word_card (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id INTEGER NOT NULL,
			word TEXT NOT NULL,
			due DATETIME,
			stability REAL NOT NULL DEFAULT 0,
			difficulty REAL NOT NULL DEFAULT 0,
			elapsed_days INTEGER NOT NULL DEFAULT 0,
			scheduled_days INTEGER NOT NULL DEFAULT 0,
			reps INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			state INTEGER NOT NULL DEFAULT 0,
			last_review DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(student_id, word),
			FOREIGN KEY(student_id) REFERENCES student(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS review_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			word_card_id INTEGER NOT NULL,
			rating INTEGER NOT NULL,
			scheduled_days INTEGER NOT NULL,
			elapsed_days INTEGER NOT NULL,
			state INTEGER NOT NULL,
			reviewed_at DATETIME NOT NULL,
			FOREIGN KEY(word_card_id) REFERENCES word_card(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS document (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			original_name TEXT NOT NULL,
			stored_path TEXT NOT NULL UNIQUE,
			classroom TEXT NOT NULL DEFAULT '',
			word_count INTEGER NOT NULL DEFAULT 0,
			uploaded_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_question_bank ON question(classroom, key) WHERE storyline_id IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_story_question_story ON story_question(story_id);`,
		`CREATE INDEX IF NOT EXISTS idx_progress_story_question ON storyline_progress(story_question_id);`,
		`CREATE INDEX IF NOT EXISTS idx_word_card_due ON word_card(student_id, due);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}
