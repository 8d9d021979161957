package sqlstore

// schema działa bez zmian na SQLite i PostgreSQL. Czasy są zapisywane jako
// milisekundy Unix w kolumnach BIGINT.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		genre TEXT NOT NULL,
		language TEXT NOT NULL,
		series_title TEXT NOT NULL DEFAULT '',
		volume_number INTEGER NOT NULL DEFAULT 0,
		lcc_number TEXT NOT NULL DEFAULT '',
		copies_created INTEGER NOT NULL DEFAULT 0,
		copies_removed INTEGER NOT NULL DEFAULT 0,
		last_serial INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS copies (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		barcode TEXT NOT NULL UNIQUE,
		serial INTEGER NOT NULL,
		status TEXT NOT NULL,
		held_for TEXT NOT NULL DEFAULT '',
		hold_until BIGINT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS copies_book_serial_idx ON copies (book_id, serial)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		copy_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		borrower_id TEXT NOT NULL,
		barcode TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		checkout_date BIGINT NOT NULL,
		due_date BIGINT NOT NULL,
		extension_date BIGINT NULL,
		checkin_date BIGINT NULL,
		fine BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS loans_borrower_idx ON loans (borrower_id, status)`,
	`CREATE INDEX IF NOT EXISTS loans_copy_idx ON loans (copy_id, status)`,
	`CREATE INDEX IF NOT EXISTS loans_book_idx ON loans (book_id)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		borrower_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		copy_id TEXT NOT NULL DEFAULT '',
		loan_id TEXT NOT NULL DEFAULT '',
		request_type TEXT NOT NULL,
		status TEXT NOT NULL,
		request_date BIGINT NOT NULL,
		resolved_date BIGINT NULL,
		resolved_by TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS requests_lookup_idx ON requests (borrower_id, book_id, request_type, status)`,
	`CREATE TABLE IF NOT EXISTS waitlists (
		book_id TEXT PRIMARY KEY,
		entries TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		likes TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reviews_book_idx ON reviews (book_id, created_at)`,
}
