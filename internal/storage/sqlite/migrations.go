package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- SLO definitions table
CREATE TABLE IF NOT EXISTS slo_definitions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	target_availability REAL NOT NULL,
	window_minutes INTEGER NOT NULL,
	definition_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Status transitions audit table
CREATE TABLE IF NOT EXISTS transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slo_id TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	burn_rate REAL NOT NULL,
	measured_availability REAL,
	total_requests INTEGER NOT NULL,
	error_count INTEGER NOT NULL,
	annotations_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (slo_id) REFERENCES slo_definitions(id)
);

CREATE INDEX IF NOT EXISTS idx_transitions_slo_id ON transitions(slo_id);
CREATE INDEX IF NOT EXISTS idx_transitions_to_status ON transitions(to_status);
CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON transitions(timestamp DESC);

-- Latest state table (one row per SLO)
CREATE TABLE IF NOT EXISTS latest_state (
	slo_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	burn_rate REAL NOT NULL,
	measured_availability REAL,
	total_requests INTEGER NOT NULL,
	error_count INTEGER NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (slo_id) REFERENCES slo_definitions(id)
);
`
