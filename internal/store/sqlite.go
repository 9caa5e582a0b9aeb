package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/dvergnet/tagcat/internal/models"
	"github.com/dvergnet/tagcat/internal/validate"
	"github.com/dvergnet/tagcat/internal/workset"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// registerFunctions installs the REGEXP predicate into the driver so queries
// can use `label REGEXP ?`. The driver registry is process-wide, so this must
// run exactly once no matter how many gateways are opened.
var registerFunctions = sync.OnceFunc(func() {
	sqlite.MustRegisterDeterministicScalarFunction("regexp", 2, regexpFunc)
})

// regexpFunc implements the SQL regexp(pattern, value) function. SQLite calls
// it with the pattern first: `value REGEXP pattern` becomes
// regexp(pattern, value). Matching is an unanchored, case-sensitive search.
func regexpFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := args[0].(string)
	if !ok {
		return int64(0), nil
	}
	value, ok := args[1].(string)
	if !ok {
		return int64(0), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regexp: %w", err)
	}
	if re.MatchString(value) {
		return int64(1), nil
	}
	return int64(0), nil
}

// SQLiteGateway implements Gateway using modernc.org/sqlite (pure Go, no
// CGO). One gateway per store location is opened for the process lifetime
// and shared by injection; the connection is not safe for concurrent
// transactional writes from multiple sessions.
type SQLiteGateway struct {
	db *sql.DB
}

// Open opens (or creates) a catalogue store at the given location and runs
// the bootstrap schema against a freshly created store. The Memory sentinel
// opens an ephemeral in-process store. Failures wrap ErrUnavailable.
func Open(path string) (*SQLiteGateway, error) {
	registerFunctions()

	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", errors.Join(ErrUnavailable, err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", errors.Join(ErrUnavailable, err))
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all access through Go's connection pool and
	// keeps the ephemeral in-memory store on one connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, errors.Join(ErrUnavailable, err))
		}
	}

	g := &SQLiteGateway{db: db}
	if err := g.bootstrap(context.Background()); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrUnavailable, err)
	}
	return g, nil
}

// bootstrap runs all embedded SQL migration files in order, tracking applied
// files so each runs at most once per store.
func (g *SQLiteGateway) bootstrap(ctx context.Context) error {
	_, err := g.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := g.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := g.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the store connection.
func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

// LoadAll reads the full persisted state.
func (g *SQLiteGateway) LoadAll(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	rows, err := g.db.QueryContext(ctx, "SELECT id, label, symbol, color FROM tag_types ORDER BY label")
	if err != nil {
		return Snapshot{}, fmt.Errorf("load tag types: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var t models.TagType
		if err := rows.Scan(&t.ID, &t.Label, &t.Symbol, &t.Color); err != nil {
			return Snapshot{}, fmt.Errorf("scan tag type: %w", err)
		}
		snap.Types = append(snap.Types, t)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("load tag types: %w", err)
	}

	tagRows, err := g.db.QueryContext(ctx, "SELECT id, label, type_id, compound FROM tags ORDER BY label")
	if err != nil {
		return Snapshot{}, fmt.Errorf("load tags: %w", err)
	}
	defer func() { _ = tagRows.Close() }()
	for tagRows.Next() {
		var t models.Tag
		var typeID sql.NullInt64
		if err := tagRows.Scan(&t.ID, &t.Label, &typeID, &t.Compound); err != nil {
			return Snapshot{}, fmt.Errorf("scan tag: %w", err)
		}
		if typeID.Valid {
			t.Type = models.StoreRef(typeID.Int64)
		}
		snap.Tags = append(snap.Tags, t)
	}
	if err := tagRows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("load tags: %w", err)
	}

	edgeRows, err := g.db.QueryContext(ctx, "SELECT compound_id, component_id FROM compound_tag ORDER BY compound_id")
	if err != nil {
		return Snapshot{}, fmt.Errorf("load compound tags: %w", err)
	}
	defer func() { _ = edgeRows.Close() }()
	byCompound := make(map[int64]*models.CompoundTag)
	var order []int64
	for edgeRows.Next() {
		var compoundID, componentID int64
		if err := edgeRows.Scan(&compoundID, &componentID); err != nil {
			return Snapshot{}, fmt.Errorf("scan compound edge: %w", err)
		}
		c, ok := byCompound[compoundID]
		if !ok {
			c = &models.CompoundTag{Tag: models.StoreRef(compoundID)}
			byCompound[compoundID] = c
			order = append(order, compoundID)
		}
		c.Components = append(c.Components, models.StoreRef(componentID))
	}
	if err := edgeRows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("load compound tags: %w", err)
	}
	for _, id := range order {
		snap.Compounds = append(snap.Compounds, *byCompound[id])
	}

	return snap, nil
}

// Commit applies every pending edit of the working set in one transaction.
// Any statement failure rolls the whole batch back and wraps ErrConstraint;
// no partial state is ever visible.
func (g *SQLiteGateway) Commit(ctx context.Context, ws *workset.WorkingSet) error {
	if report := validate.Check(ws); !report.Valid() {
		return fmt.Errorf("commit refused: working set has %d integrity violations", len(report.Violations))
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Foreign keys are checked when the transaction commits, so statement
	// order only has to satisfy the unique label indexes: rows leaving the
	// catalogue go first, freeing their labels for the batch's own inserts
	// and updates.
	if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
		return commitErr("defer foreign keys", err)
	}

	// IDs assigned to pending inserts, so later statements can resolve
	// references to rows created earlier in the same batch.
	assigned := make(map[string]int64)

	refValue := func(r models.Ref) (any, error) {
		switch {
		case r.IsZero():
			return nil, nil
		case r.IsLocal():
			id, ok := assigned[r.Local]
			if !ok {
				return nil, fmt.Errorf("unresolved local reference %s", r.Local)
			}
			return id, nil
		default:
			return r.ID, nil
		}
	}

	// Deletes: compound edges, then tags, then types.
	for _, id := range ws.Compounds.Deleted() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM compound_tag WHERE compound_id = ?", id); err != nil {
			return commitErr("delete compound definition", err)
		}
	}
	for id := range ws.Compounds.Modified() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM compound_tag WHERE compound_id = ?", id); err != nil {
			return commitErr("rewrite compound definition", err)
		}
	}
	for _, id := range ws.Tags.Deleted() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id); err != nil {
			return commitErr("delete tag", err)
		}
	}
	for _, id := range ws.Types.Deleted() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tag_types WHERE id = ?", id); err != nil {
			return commitErr("delete tag type", err)
		}
	}

	// Inserts and updates run parents first: types, tags, compound edges.
	for handle, t := range ws.Types.Inserted() {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO tag_types (label, symbol, color) VALUES (?, ?, ?)",
			t.Label, t.Symbol, t.Color)
		if err != nil {
			return commitErr(fmt.Sprintf("insert tag type %q", t.Label), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return commitErr("read tag type id", err)
		}
		assigned[handle] = id
	}
	for id, t := range ws.Types.Modified() {
		if _, err := tx.ExecContext(ctx,
			"UPDATE tag_types SET label = ?, symbol = ?, color = ? WHERE id = ?",
			t.Label, t.Symbol, t.Color, id); err != nil {
			return commitErr(fmt.Sprintf("update tag type %q", t.Label), err)
		}
	}

	for handle, t := range ws.Tags.Inserted() {
		typeID, err := refValue(t.Type)
		if err != nil {
			return commitErr(fmt.Sprintf("insert tag %q", t.Label), err)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO tags (label, type_id, compound) VALUES (?, ?, ?)",
			t.Label, typeID, boolToInt(t.Compound))
		if err != nil {
			return commitErr(fmt.Sprintf("insert tag %q", t.Label), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return commitErr("read tag id", err)
		}
		assigned[handle] = id
	}
	for id, t := range ws.Tags.Modified() {
		typeID, err := refValue(t.Type)
		if err != nil {
			return commitErr(fmt.Sprintf("update tag %q", t.Label), err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE tags SET label = ?, type_id = ?, compound = ? WHERE id = ?",
			t.Label, typeID, boolToInt(t.Compound), id); err != nil {
			return commitErr(fmt.Sprintf("update tag %q", t.Label), err)
		}
	}

	// Compound edges last, once every referenced tag row exists. The edge
	// sets of rewritten definitions were already cleared above.
	for id, c := range ws.Compounds.Modified() {
		if err := g.insertEdges(ctx, tx, models.StoreRef(id), c, refValue); err != nil {
			return err
		}
	}
	for _, c := range ws.Compounds.Inserted() {
		if err := g.insertEdges(ctx, tx, c.Tag, c, refValue); err != nil {
			return err
		}
	}

	// Deferred foreign keys are verified here rather than at COMMIT; a
	// COMMIT failing on them leaves the transaction open on the connection.
	fkRows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return commitErr("check foreign keys", err)
	}
	violated := fkRows.Next()
	if err := fkRows.Close(); err != nil {
		return commitErr("check foreign keys", err)
	}
	if violated {
		return commitErr("check foreign keys", errors.New("foreign key constraint failed"))
	}

	if err := tx.Commit(); err != nil {
		return commitErr("commit tx", err)
	}
	return nil
}

// insertEdges writes the component edges of one compound tag, resolving any
// references to rows inserted earlier in the batch.
func (g *SQLiteGateway) insertEdges(ctx context.Context, tx *sql.Tx, owner models.Ref, c models.CompoundTag, refValue func(models.Ref) (any, error)) error {
	compoundID, err := refValue(owner)
	if err != nil {
		return commitErr("insert compound definition", err)
	}
	seen := make(map[any]bool, len(c.Components))
	for _, comp := range c.Components {
		componentID, err := refValue(comp)
		if err != nil {
			return commitErr("insert compound component", err)
		}
		if componentID == nil || seen[componentID] {
			continue
		}
		seen[componentID] = true
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO compound_tag (compound_id, component_id) VALUES (?, ?)",
			compoundID, componentID); err != nil {
			return commitErr("insert compound component", err)
		}
	}
	return nil
}

func commitErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrConstraint, err))
}

// Search returns tag types and tags matching text as a case-insensitive
// substring of their label, or as a case-sensitive regular expression when
// text compiles as one.
func (g *SQLiteGateway) Search(ctx context.Context, text string) (Matches, error) {
	where := `label LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(text) + "%"}
	if _, err := regexp.Compile(text); err == nil {
		where += " OR label REGEXP ?"
		args = append(args, text)
	}

	var m Matches

	typeRows, err := g.db.QueryContext(ctx,
		"SELECT id, label, symbol, color FROM tag_types WHERE "+where+" ORDER BY label", args...)
	if err != nil {
		return Matches{}, fmt.Errorf("search tag types: %w", err)
	}
	defer func() { _ = typeRows.Close() }()
	for typeRows.Next() {
		var t models.TagType
		if err := typeRows.Scan(&t.ID, &t.Label, &t.Symbol, &t.Color); err != nil {
			return Matches{}, fmt.Errorf("scan tag type: %w", err)
		}
		m.Types = append(m.Types, t)
	}
	if err := typeRows.Err(); err != nil {
		return Matches{}, fmt.Errorf("search tag types: %w", err)
	}

	tagRows, err := g.db.QueryContext(ctx,
		"SELECT id, label, type_id, compound FROM tags WHERE "+where+" ORDER BY label", args...)
	if err != nil {
		return Matches{}, fmt.Errorf("search tags: %w", err)
	}
	defer func() { _ = tagRows.Close() }()
	for tagRows.Next() {
		var t models.Tag
		var typeID sql.NullInt64
		if err := tagRows.Scan(&t.ID, &t.Label, &typeID, &t.Compound); err != nil {
			return Matches{}, fmt.Errorf("scan tag: %w", err)
		}
		if typeID.Valid {
			t.Type = models.StoreRef(typeID.Int64)
		}
		m.Tags = append(m.Tags, t)
	}
	if err := tagRows.Err(); err != nil {
		return Matches{}, fmt.Errorf("search tags: %w", err)
	}

	return m, nil
}

// Counts returns how many compound tags each tag appears in as a component.
func (g *SQLiteGateway) Counts(ctx context.Context) (map[int64]int, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT component_id, COUNT(*) FROM compound_tag GROUP BY component_id")
	if err != nil {
		return nil, fmt.Errorf("count components: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan component count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
