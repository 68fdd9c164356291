package store

import "context"

// TableColumns returns the column names of an existing table in storage
// order, or an empty slice when the table does not exist. Additive schema
// synchronization diffs this against a schema's declared fields.
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	// The table-valued pragma_table_info form takes bound parameters;
	// plain PRAGMA table_info would force interpolating the table name.
	rows, err := s.Query(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cols, nil
}
