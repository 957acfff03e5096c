package store

func (s *Store) migrate() error {
	return s.migrateV1()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		total_files INTEGER NOT NULL,
		total_bytes INTEGER NOT NULL,
		partial INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		scan_id TEXT NOT NULL,
		category TEXT NOT NULL,
		source_path TEXT NOT NULL,
		target_path TEXT NOT NULL,
		executed INTEGER NOT NULL DEFAULT 0,
		manifest_id TEXT,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_scan ON plans(scan_id);
	CREATE INDEX IF NOT EXISTS idx_plans_created ON plans(created_at);

	CREATE TABLE IF NOT EXISTS manifests (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		status TEXT NOT NULL,
		payload TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_manifests_plan ON manifests(plan_id);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}
