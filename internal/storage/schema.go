package storage

// sqliteSchema is applied on every open. modernc.org/sqlite only converts
// columns declared DATETIME, DATE or TIMESTAMP back into time.Time.
const sqliteSchema = `
-- The 'flashcards' table stores each card and its rolled-up review schedule.
CREATE TABLE IF NOT EXISTS flashcards (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    topic TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    retention_level INTEGER NOT NULL DEFAULT 0, -- 0..5, higher is better retained
    review_count INTEGER NOT NULL DEFAULT 0,
    correct_count INTEGER NOT NULL DEFAULT 0,
    next_review DATETIME NOT NULL,
    last_reviewed DATETIME,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_flashcards_owner_due ON flashcards(owner_id, next_review);
CREATE INDEX IF NOT EXISTS idx_flashcards_owner_hash ON flashcards(owner_id, content_hash);

-- The 'review_events' table is the append-only review history.
CREATE TABLE IF NOT EXISTS review_events (
    id TEXT PRIMARY KEY,
    flashcard_id TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    result TEXT NOT NULL,
    time_spent INTEGER,
    created_at DATETIME NOT NULL,

    FOREIGN KEY(flashcard_id) REFERENCES flashcards(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_review_events_card ON review_events(flashcard_id, created_at);
CREATE INDEX IF NOT EXISTS idx_review_events_owner ON review_events(owner_id, created_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS flashcards (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    topic TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    retention_level INTEGER NOT NULL DEFAULT 0,
    review_count INTEGER NOT NULL DEFAULT 0,
    correct_count INTEGER NOT NULL DEFAULT 0,
    next_review TIMESTAMPTZ NOT NULL,
    last_reviewed TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_flashcards_owner_due ON flashcards(owner_id, next_review);
CREATE INDEX IF NOT EXISTS idx_flashcards_owner_hash ON flashcards(owner_id, content_hash);

CREATE TABLE IF NOT EXISTS review_events (
    id TEXT PRIMARY KEY,
    flashcard_id TEXT NOT NULL REFERENCES flashcards(id) ON DELETE CASCADE,
    owner_id TEXT NOT NULL,
    result TEXT NOT NULL,
    time_spent INTEGER,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_events_card ON review_events(flashcard_id, created_at);
CREATE INDEX IF NOT EXISTS idx_review_events_owner ON review_events(owner_id, created_at);
`
