package dolt

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Conflict is one conflicting row in one table
type Conflict struct {
	Table  string         `json:"table"`
	Key    map[string]any `json:"key"`
	Ours   map[string]any `json:"ours"`
	Theirs map[string]any `json:"theirs"`
}

// TableConflicts summarizes the conflicts a merge would produce in one table
type TableConflicts struct {
	Table           string
	DataConflicts   int
	SchemaConflicts int
}

// Inspector reads merge state and conflicts over SQL. Queries are pinned to
// a branch by qualifying tables with `<database>/<branch>`.
type Inspector struct {
	session  Session
	database string
}

// NewInspector creates an Inspector for database
func NewInspector(session Session, database string) *Inspector {
	return &Inspector{session: session, database: database}
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func (i *Inspector) qualified(branch, table string) string {
	if branch == "" {
		return quoteIdent(table)
	}
	return quoteIdent(i.database+"/"+branch) + "." + quoteIdent(table)
}

// Conflicts returns every conflicting row on branch
func (i *Inspector) Conflicts(ctx context.Context, branch string) ([]Conflict, error) {
	summary, err := i.session.Query(ctx, "SELECT `table`, num_conflicts FROM "+i.qualified(branch, "dolt_conflicts"))
	if err != nil {
		return nil, fmt.Errorf("failed to read dolt conflicts: %w", err)
	}

	var tables []string
	for _, row := range summary {
		if toInt(row["num_conflicts"]) > 0 {
			tables = append(tables, fmt.Sprint(row["table"]))
		}
	}
	sort.Strings(tables)

	var conflicts []Conflict
	for _, table := range tables {
		pk, err := i.primaryKey(ctx, branch, table)
		if err != nil {
			return nil, err
		}
		rows, err := i.session.Query(ctx, "SELECT * FROM "+i.qualified(branch, "dolt_conflicts_"+table))
		if err != nil {
			return nil, fmt.Errorf("failed to read conflicts for table %s: %w", table, err)
		}
		for _, row := range rows {
			conflicts = append(conflicts, conflictFromRow(table, pk, row))
		}
	}
	return conflicts, nil
}

func (i *Inspector) primaryKey(ctx context.Context, branch, table string) ([]string, error) {
	rows, err := i.session.Query(ctx,
		"SELECT COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE "+
			"WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY ORDINAL_POSITION",
		schemaName(i.database, branch), table)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", table, err)
	}
	cols := make([]string, 0, len(rows))
	for _, row := range rows {
		cols = append(cols, fmt.Sprint(row["COLUMN_NAME"]))
	}
	return cols, nil
}

func schemaName(database, branch string) string {
	if branch == "" {
		return database
	}
	return database + "/" + branch
}

// conflictFromRow splits a dolt_conflicts_<table> row into our and their
// sides. Key columns are taken from whichever side still has the row.
func conflictFromRow(table string, pk []string, row Row) Conflict {
	c := Conflict{Table: table, Key: map[string]any{}, Ours: map[string]any{}, Theirs: map[string]any{}}
	for col, val := range row {
		switch {
		case col == "our_diff_type" || col == "their_diff_type":
		case strings.HasPrefix(col, "our_"):
			c.Ours[strings.TrimPrefix(col, "our_")] = val
		case strings.HasPrefix(col, "their_"):
			c.Theirs[strings.TrimPrefix(col, "their_")] = val
		}
	}
	for _, col := range pk {
		switch {
		case c.Ours[col] != nil:
			c.Key[col] = c.Ours[col]
		case c.Theirs[col] != nil:
			c.Key[col] = c.Theirs[col]
		default:
			c.Key[col] = row["base_"+col]
		}
	}
	if len(pk) == 0 {
		c.Key["dolt_conflict_id"] = row["dolt_conflict_id"]
	}
	return c
}

// PreviewConflicts reports the conflicts merging source into target would
// produce, without starting a merge
func (i *Inspector) PreviewConflicts(ctx context.Context, target, source string) ([]TableConflicts, error) {
	rows, err := i.session.Query(ctx,
		"SELECT `table`, num_data_conflicts, num_schema_conflicts FROM DOLT_PREVIEW_MERGE_CONFLICTS_SUMMARY(?, ?)",
		target, source)
	if err != nil {
		return nil, fmt.Errorf("failed to preview dolt merge of %s into %s: %w", source, target, err)
	}
	out := make([]TableConflicts, 0, len(rows))
	for _, row := range rows {
		out = append(out, TableConflicts{
			Table:           fmt.Sprint(row["table"]),
			DataConflicts:   toInt(row["num_data_conflicts"]),
			SchemaConflicts: toInt(row["num_schema_conflicts"]),
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Table < out[b].Table })
	return out, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case int32:
		return int(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		if n == "true" {
			return 1
		}
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
