package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Dialect names understood by the truncation policy.
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	sqliteForeignKeysOff = "PRAGMA foreign_keys = OFF"
	sqliteForeignKeysOn  = "PRAGMA foreign_keys = ON"
)

// TruncateStatements returns the SQL that empties tables on dialect, ledger
// excluded, in table name order.
//
// mysql yields a single batched statement; every other dialect yields one
// statement per table. For sqlite the foreign key bracket is not included;
// see truncate.
func TruncateStatements(dialect string, tables []string, ledger string) []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		if t == ledger {
			continue
		}
		names = append(names, t)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil
	}

	switch dialect {
	case DialectMySQL:
		var b strings.Builder
		b.WriteString("SET FOREIGN_KEY_CHECKS=0;")
		for _, name := range names {
			fmt.Fprintf(&b, "TRUNCATE `%s`;", name)
		}
		b.WriteString("SET FOREIGN_KEY_CHECKS=1;")
		return []string{b.String()}
	case DialectSQLite:
		stmts := make([]string, len(names))
		for i, name := range names {
			stmts[i] = fmt.Sprintf(`DELETE FROM "%s"`, name)
		}
		return stmts
	default:
		stmts := make([]string, len(names))
		for i, name := range names {
			stmts[i] = fmt.Sprintf(`TRUNCATE "%s" CASCADE;`, name)
		}
		return stmts
	}
}

// truncate empties every table of snap through p.
func truncate(ctx context.Context, p Persistence, snap SchemaSnapshot) (err error) {
	stmts := TruncateStatements(snap.Dialect, snap.Tables, snap.Ledger)
	if len(stmts) == 0 {
		return nil
	}

	if snap.Dialect == DialectSQLite {
		if err := p.ExecRaw(ctx, sqliteForeignKeysOff); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		defer func() {
			if restoreErr := p.ExecRaw(ctx, sqliteForeignKeysOn); restoreErr != nil && err == nil {
				err = fmt.Errorf("truncate: %w", restoreErr)
			}
		}()
	}

	for _, stmt := range stmts {
		if err := p.ExecRaw(ctx, stmt); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
	}
	return nil
}
