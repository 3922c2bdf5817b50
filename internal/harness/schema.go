package harness

// SchemaSnapshot is the table list captured right after migrations were
// applied. It is taken once per Suite and never refreshed.
type SchemaSnapshot struct {
	Dialect string
	Ledger  string
	Tables  []string
}

// Truncatable returns the snapshot tables minus the migration ledger.
func (s SchemaSnapshot) Truncatable() []string {
	tables := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		if t == s.Ledger {
			continue
		}
		tables = append(tables, t)
	}
	return tables
}

// schemaCache holds at most one snapshot. Guarded by Suite.mu.
type schemaCache struct {
	snapshot *SchemaSnapshot
	captures int
}

func (c *schemaCache) get() (SchemaSnapshot, bool) {
	if c.snapshot == nil {
		return SchemaSnapshot{}, false
	}
	return *c.snapshot, true
}

func (c *schemaCache) set(s SchemaSnapshot) {
	tables := append([]string(nil), s.Tables...)
	s.Tables = tables
	c.snapshot = &s
	c.captures++
}
