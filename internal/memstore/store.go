// Package memstore is the embedded relational store: a SQLite-backed
// durable home for memories, tags, co-occurrence edges, and small
// operator/ingester metadata.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hebbianmem/hebbianmem/internal/models"
	"github.com/hebbianmem/hebbianmem/internal/vectormath"
)

// Store wraps a *sql.DB configured for WAL journaling, relaxed durability,
// and foreign-key enforcement, for a single-writer/many-reader access
// pattern.
type Store struct {
	db       *sql.DB
	embedDim int
	logger   *zap.Logger
}

// Open creates the database (and its parent directory) if necessary,
// applies pragmas, runs the schema, and records the schema version in Meta.
// embedDim is the configured embedding dimension; stored blobs whose length
// is not embedDim*4 bytes are treated as missing on load. A zero embedDim
// disables the check. A nil logger falls back to zap.NewNop.
func Open(path string, embedDim int, logger *zap.Logger) (*Store, error) {
	path = expandPath(path)
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, models.NewError(models.StoreUnavailable, "memstore.Open", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.Open", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, embedDim: embedDim, logger: logger}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, models.NewError(models.StoreCorruption, "memstore.Open", err)
	}
	if err := s.ensureSchemaVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

func (s *Store) ensureSchemaVersion() error {
	existing, err := s.GetMeta(context.Background(), "schema_version")
	if err != nil {
		return err
	}
	if existing == "" {
		return s.SetMeta(context.Background(), "schema_version", schemaVersion)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const isoLayout = time.RFC3339

const upsertMemorySQL = `
	INSERT INTO memories (
		id, title, detail, domain, pattern_type, source, source_section,
		created, last_retrieved, retrieval_count, activation, content_hash,
		embedding, status, superseded_by, corrects
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title=excluded.title, detail=excluded.detail, domain=excluded.domain,
		pattern_type=excluded.pattern_type, source=excluded.source,
		source_section=excluded.source_section, created=excluded.created,
		last_retrieved=excluded.last_retrieved, retrieval_count=excluded.retrieval_count,
		activation=excluded.activation, content_hash=excluded.content_hash,
		embedding=excluded.embedding, status=excluded.status,
		superseded_by=excluded.superseded_by, corrects=excluded.corrects`

func upsertMemoryArgs(m *models.Memory) []any {
	var blob []byte
	if m.Embedding != nil {
		blob = vectormath.Serialize(m.Embedding)
	}
	return []any{
		m.ID, m.Title, m.Detail, m.Domain, patternTypeValue(m.PatternType), m.Source, m.SourceSection,
		m.Created.Format(isoLayout), m.LastRetrieved.Format(isoLayout), m.RetrievalCount, m.Activation, m.ContentHash,
		blob, string(m.Status), nullableString(m.SupersededBy), nullableString(m.Corrects),
	}
}

// UpsertMemory inserts a new memory or overwrites an existing one by id.
// Tags are written separately via WriteTags.
func (s *Store) UpsertMemory(ctx context.Context, m *models.Memory) error {
	_, err := s.db.ExecContext(ctx, upsertMemorySQL, upsertMemoryArgs(m)...)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.UpsertMemory", err)
	}
	return nil
}

// UpsertBatch writes every memory, its embedding blob, and its tag set in
// one transaction, so a reader sees either the whole batch or none of it.
func (s *Store) UpsertBatch(ctx context.Context, ms []*models.Memory, tags map[string][]string) error {
	if len(ms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.UpsertBatch", err)
	}
	defer tx.Rollback()

	memStmt, err := tx.PrepareContext(ctx, upsertMemorySQL)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.UpsertBatch", err)
	}
	defer memStmt.Close()
	tagStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO tags (memory_id, tag) VALUES (?, ?)`)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.UpsertBatch", err)
	}
	defer tagStmt.Close()

	for _, m := range ms {
		if _, err := memStmt.ExecContext(ctx, upsertMemoryArgs(m)...); err != nil {
			return models.NewError(models.StoreUnavailable, "memstore.UpsertBatch", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE memory_id = ?`, m.ID); err != nil {
			return models.NewError(models.StoreUnavailable, "memstore.UpsertBatch", err)
		}
		for _, tag := range tags[m.ID] {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" {
				continue
			}
			if _, err := tagStmt.ExecContext(ctx, m.ID, tag); err != nil {
				return models.NewError(models.StoreUnavailable, "memstore.UpsertBatch", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.UpsertBatch", err)
	}
	return nil
}

func patternTypeValue(pt models.PatternType) any {
	if pt == "" {
		return nil
	}
	return string(pt)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetMemory fetches one memory by id. It returns (nil, nil) if no such
// memory exists.
func (s *Store) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	row := s.db.QueryRowContext(ctx, memorySelectCols+` FROM memories WHERE id = ?`, id)
	m, err := s.scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.GetMemory", err)
	}
	return m, nil
}

const memorySelectCols = `SELECT id, title, detail, domain, pattern_type, source, source_section,
	created, last_retrieved, retrieval_count, activation, content_hash, embedding,
	status, superseded_by, corrects`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanMemory(row rowScanner) (*models.Memory, error) {
	var (
		m             models.Memory
		patternType   sql.NullString
		created       string
		lastRetrieved string
		embedding     []byte
		status        string
		supersededBy  sql.NullString
		corrects      sql.NullString
	)
	if err := row.Scan(
		&m.ID, &m.Title, &m.Detail, &m.Domain, &patternType, &m.Source, &m.SourceSection,
		&created, &lastRetrieved, &m.RetrievalCount, &m.Activation, &m.ContentHash, &embedding,
		&status, &supersededBy, &corrects,
	); err != nil {
		return nil, err
	}
	m.PatternType = models.PatternType(patternType.String)
	if t, err := time.Parse(isoLayout, created); err == nil {
		m.Created = t
	}
	if t, err := time.Parse(isoLayout, lastRetrieved); err == nil {
		m.LastRetrieved = t
	}
	if vec, ok := vectormath.Deserialize(embedding); ok {
		if s.embedDim > 0 && len(vec) != s.embedDim {
			s.logger.Warn("embedding blob has wrong dimension, treating as missing",
				zap.String("id", m.ID),
				zap.Int("got", len(vec)),
				zap.Int("want", s.embedDim),
			)
		} else {
			m.Embedding = vec
		}
	}
	if status == "" {
		m.Status = models.StatusActive
	} else {
		m.Status = models.Status(status)
	}
	m.SupersededBy = supersededBy.String
	m.Corrects = corrects.String
	return &m, nil
}

// ScanWithEmbedding returns every active memory that carries an embedding,
// the candidate set the retrieval pipeline scores against.
func (s *Store) ScanWithEmbedding(ctx context.Context) ([]*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelectCols+`
		FROM memories WHERE status = ? AND embedding IS NOT NULL`, string(models.StatusActive))
	if err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.ScanWithEmbedding", err)
	}
	defer rows.Close()
	return s.collectMemories(rows)
}

// ScanByDomain returns active memories in a domain, ordered by descending
// activation.
func (s *Store) ScanByDomain(ctx context.Context, domain string) ([]*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelectCols+`
		FROM memories WHERE status = ? AND domain = ? ORDER BY activation DESC`,
		string(models.StatusActive), domain)
	if err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.ScanByDomain", err)
	}
	defer rows.Close()
	return s.collectMemories(rows)
}

// ScanActive returns every active memory regardless of embedding state, the
// full population a stats or maintenance pass reports over.
func (s *Store) ScanActive(ctx context.Context) ([]*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelectCols+`
		FROM memories WHERE status = ?`, string(models.StatusActive))
	if err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.ScanActive", err)
	}
	defer rows.Close()
	return s.collectMemories(rows)
}

// TopActive returns up to limit active memories ordered by descending
// activation, the fallback candidate set when neither a query embedding nor
// domain hints are available.
func (s *Store) TopActive(ctx context.Context, limit int) ([]*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelectCols+`
		FROM memories WHERE status = ? ORDER BY activation DESC LIMIT ?`,
		string(models.StatusActive), limit)
	if err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.TopActive", err)
	}
	defer rows.Close()
	return s.collectMemories(rows)
}

// ScanMissingEmbedding returns every active memory that has no embedding
// yet, the candidate set a back-fill maintenance task works through.
func (s *Store) ScanMissingEmbedding(ctx context.Context) ([]*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, memorySelectCols+`
		FROM memories WHERE status = ? AND embedding IS NULL`, string(models.StatusActive))
	if err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.ScanMissingEmbedding", err)
	}
	defer rows.Close()
	return s.collectMemories(rows)
}

func (s *Store) collectMemories(rows *sql.Rows) ([]*models.Memory, error) {
	var out []*models.Memory
	for rows.Next() {
		m, err := s.scanMemory(rows)
		if err != nil {
			return nil, models.NewError(models.StoreUnavailable, "memstore.collectMemories", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.collectMemories", err)
	}
	return out, nil
}

// BumpActivation adds delta to each listed memory's activation, increments
// retrieval_count, and sets last_retrieved to now, atomically, inside one
// transaction. It returns the number of rows actually touched.
func (s *Store) BumpActivation(ctx context.Context, ids []string, delta float64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, models.NewError(models.StoreUnavailable, "memstore.BumpActivation", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE memories SET activation = activation + ?, retrieval_count = retrieval_count + 1,
		last_retrieved = ? WHERE id = ?`)
	if err != nil {
		return 0, models.NewError(models.StoreUnavailable, "memstore.BumpActivation", err)
	}
	defer stmt.Close()

	var touched int64
	now := time.Now().UTC().Format(isoLayout)
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, delta, now, id)
		if err != nil {
			return 0, models.NewError(models.StoreUnavailable, "memstore.BumpActivation", err)
		}
		n, _ := res.RowsAffected()
		touched += n
	}
	if err := tx.Commit(); err != nil {
		return 0, models.NewError(models.StoreUnavailable, "memstore.BumpActivation", err)
	}
	return touched, nil
}

// DecayAll multiplies every memory's activation by factor. A partial
// failure is treated as fatal: the whole decay pass rolls back, never
// committing a half-decayed store.
func (s *Store) DecayAll(ctx context.Context, factor float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE memories SET activation = activation * ?`, factor)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.DecayAll", err)
	}
	return nil
}

// GetMeta returns the value for key, or "" if the key is unset.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", models.NewError(models.StoreUnavailable, "memstore.GetMeta", err)
	}
	return value, nil
}

// SetMeta writes key/value, overwriting any prior value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.SetMeta", err)
	}
	return nil
}

// WriteTags replaces the tag set for memoryID with tags, inside one
// transaction.
func (s *Store) WriteTags(ctx context.Context, memoryID string, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.WriteTags", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE memory_id = ?`, memoryID); err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.WriteTags", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO tags (memory_id, tag) VALUES (?, ?)`)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.WriteTags", err)
	}
	defer stmt.Close()
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, memoryID, tag); err != nil {
			return models.NewError(models.StoreUnavailable, "memstore.WriteTags", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.WriteTags", err)
	}
	return nil
}

// UpsertCoOccurrence adds delta to weight(a,b) and weight(b,a), writing both
// directions atomically so the symmetry invariant always holds.
func (s *Store) UpsertCoOccurrence(ctx context.Context, a, b string, delta float64) error {
	return s.AddCoOccurrences(ctx, [][2]string{{a, b}}, delta)
}

// AddCoOccurrences adds delta to both directions of every listed pair
// inside one transaction. Self-loop pairs are skipped.
func (s *Store) AddCoOccurrences(ctx context.Context, pairs [][2]string, delta float64) error {
	if len(pairs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.AddCoOccurrences", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cooccurrences (a, b, weight) VALUES (?, ?, ?)
		ON CONFLICT(a, b) DO UPDATE SET weight = weight + excluded.weight`)
	if err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.AddCoOccurrences", err)
	}
	defer stmt.Close()

	for _, p := range pairs {
		if p[0] == p[1] {
			continue
		}
		if _, err := stmt.ExecContext(ctx, p[0], p[1], delta); err != nil {
			return models.NewError(models.StoreUnavailable, "memstore.AddCoOccurrences", err)
		}
		if _, err := stmt.ExecContext(ctx, p[1], p[0], delta); err != nil {
			return models.NewError(models.StoreUnavailable, "memstore.AddCoOccurrences", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.NewError(models.StoreUnavailable, "memstore.AddCoOccurrences", err)
	}
	return nil
}

// TopCoOccurrenceNeighbours returns up to limit neighbours of id, ordered by
// descending weight.
func (s *Store) TopCoOccurrenceNeighbours(ctx context.Context, id string, limit int) ([]models.Neighbour, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b, weight FROM cooccurrences WHERE a = ? ORDER BY weight DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.TopCoOccurrenceNeighbours", err)
	}
	defer rows.Close()

	var out []models.Neighbour
	for rows.Next() {
		var n models.Neighbour
		if err := rows.Scan(&n.ID, &n.Weight); err != nil {
			return nil, models.NewError(models.StoreUnavailable, "memstore.TopCoOccurrenceNeighbours", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewError(models.StoreUnavailable, "memstore.TopCoOccurrenceNeighbours", err)
	}
	return out, nil
}
