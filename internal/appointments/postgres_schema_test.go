package appointments

import (
	"context"
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-reminders/migrations"
)

// recordingDB captures every statement the store issues.
type recordingDB struct {
	statements []string
}

var errRecorded = errors.New("recorded")

func (d *recordingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.statements = append(d.statements, sql)
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func (d *recordingDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.statements = append(d.statements, sql)
	return nil, errRecorded
}

func (d *recordingDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	d.statements = append(d.statements, sql)
	return errRow{}
}

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errRecorded }

var (
	ddlColumn   = regexp.MustCompile(`(?m)^ {4}([a-z_][a-z0-9_]*)\s+[A-Z]`)
	sqlLiteral  = regexp.MustCompile(`'[^']*'`)
	sqlIdent    = regexp.MustCompile(`\b[a-z_][a-z0-9_]*\b`)
	sqlKeywords = map[string]bool{
		"select": true, "from": true, "where": true, "and": true, "not": true, "true": true,
		"update": true, "set": true, "order": true, "by": true, "asc": true,
		"coalesce": true, "to_char": true, "appointments": true,
	}
)

// schemaColumns returns the columns created for the appointments table by
// the embedded up migrations.
func schemaColumns(t *testing.T) map[string]bool {
	t.Helper()
	files, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	cols := map[string]bool{}
	for _, name := range files {
		raw, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		for _, m := range ddlColumn.FindAllStringSubmatch(string(raw), -1) {
			cols[m[1]] = true
		}
	}
	return cols
}

func referencedColumns(sql string) []string {
	sql = sqlLiteral.ReplaceAllString(strings.ToLower(sql), "")
	var out []string
	for _, ident := range sqlIdent.FindAllString(sql, -1) {
		if !sqlKeywords[ident] {
			out = append(out, ident)
		}
	}
	return out
}

func TestPostgresStoreStatementsMatchMigration(t *testing.T) {
	cols := schemaColumns(t)
	require.True(t, cols["reminder_24h_sent"], "migration parse found %v", cols)

	db := &recordingDB{}
	store := NewPostgresStore(db)
	_, _ = store.ListAppointments(context.Background())
	for _, kind := range []ReminderKind{Reminder24h, Reminder2h} {
		_ = store.MarkReminderSent(context.Background(), "a1", kind, time.Now())
	}
	require.Len(t, db.statements, 5, "list, then update and re-check per kind")

	for _, stmt := range db.statements {
		for _, col := range referencedColumns(stmt) {
			assert.True(t, cols[col], "statement references column %q which the migration never creates:\n%s", col, stmt)
		}
	}
}
