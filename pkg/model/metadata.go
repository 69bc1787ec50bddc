// pkg/model/metadata.go
package model

// TimestampColumn is the name given to a Table's index when it is written
// to or read from a SQL table
const TimestampColumn = "timestamp"

// TableMetadata describes the SQL-side shape of an exported Table
type TableMetadata struct {
	Schema      string   // Schema name (empty for the connection default)
	Table       string   // Table name
	Columns     []Column // Column definitions, timestamp first
	PrimaryKeys []string // List of primary key column names
}

// Column represents metadata about an exported column
type Column struct {
	Name         string // Column name as it appears in the Table
	Kind         Kind   // Storage class of the source series
	SQLType      string // Mapped SQL type
	IsTimestamp  bool   // Whether this is the index column
	Nullable     bool   // Whether column allows NULL values
	IsPrimaryKey bool   // Whether column is part of primary key
}

// MetadataFor describes t as a SQL table keyed by its timestamp. SQLType is
// left for the converter to fill in.
func MetadataFor(schema, table string, t *Table) *TableMetadata {
	meta := &TableMetadata{
		Schema:      schema,
		Table:       table,
		PrimaryKeys: []string{TimestampColumn},
	}
	meta.Columns = append(meta.Columns, Column{
		Name:         TimestampColumn,
		IsTimestamp:  true,
		IsPrimaryKey: true,
	})
	for _, s := range t.Columns {
		meta.Columns = append(meta.Columns, Column{
			Name:     s.Name,
			Kind:     s.Kind,
			Nullable: true,
		})
	}
	return meta
}

// QualifiedName returns schema.table, or just table when no schema is set
func (tm *TableMetadata) QualifiedName() string {
	if tm.Schema == "" {
		return tm.Table
	}
	return tm.Schema + "." + tm.Table
}
