package storage

const schemaSQL = `
-- One row per crawl run; runs are append-only and never resumed
CREATE TABLE IF NOT EXISTS crawl_runs (
    id TEXT PRIMARY KEY NOT NULL,
    base_url TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    stop_reason TEXT,
    pages_visited INTEGER NOT NULL DEFAULT 0,
    items_seen INTEGER NOT NULL DEFAULT 0,
    products INTEGER NOT NULL DEFAULT 0,
    item_failures INTEGER NOT NULL DEFAULT 0,
    images_saved INTEGER NOT NULL DEFAULT 0,
    images_cached INTEGER NOT NULL DEFAULT 0,
    image_failures INTEGER NOT NULL DEFAULT 0
);

-- Products keep the order they were extracted in (position)
CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    price TEXT NOT NULL,
    description TEXT NOT NULL,
    url TEXT NOT NULL,
    UNIQUE(run_id, url),
    UNIQUE(run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_products_run ON products(run_id, position);
CREATE INDEX IF NOT EXISTS idx_products_url ON products(url);

-- Image references: a local path, or the remote URL when not materialized
CREATE TABLE IF NOT EXISTS product_images (
    product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    ref TEXT NOT NULL,
    PRIMARY KEY (product_id, position)
);

-- Skipped items and images
CREATE TABLE IF NOT EXISTS crawl_failures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    kind TEXT NOT NULL,
    message TEXT,
    occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failures_run ON crawl_failures(run_id);
CREATE INDEX IF NOT EXISTS idx_failures_kind ON crawl_failures(kind);

-- Product counts per run, for reporting
CREATE VIEW IF NOT EXISTS run_summary AS
SELECT
    r.id, r.base_url, r.started_at, r.finished_at, r.stop_reason,
    r.pages_visited, r.products,
    (SELECT COUNT(*) FROM crawl_failures f WHERE f.run_id = r.id) AS failures
FROM crawl_runs r;
`
