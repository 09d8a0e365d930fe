package store

import (
	"context"
	"slices"

	"github.com/roach88/sqlcompile/internal/queryir"
)

// FillColumns completes q from the catalog of its table.
//
// A request without a column universe gets the catalog's column list, and
// an upsert without update columns gets its non-primary-key columns. The
// catalog is read at most once and only when something is missing.
func (s *Store) FillColumns(ctx context.Context, q queryir.Query) (queryir.Query, error) {
	var catalog *Catalog
	load := func(table string) (*Catalog, error) {
		if catalog == nil {
			c, err := s.Introspect(ctx, table)
			if err != nil {
				return nil, err
			}
			catalog = &c
		}
		return catalog, nil
	}

	switch query := q.(type) {
	case *queryir.Find:
		return s.FillColumns(ctx, *query)
	case *queryir.Count:
		return s.FillColumns(ctx, *query)
	case *queryir.Remove:
		return s.FillColumns(ctx, *query)
	case *queryir.Insert:
		return s.FillColumns(ctx, *query)
	case *queryir.Upsert:
		return s.FillColumns(ctx, *query)
	case *queryir.Update:
		return s.FillColumns(ctx, *query)
	case queryir.Find:
		if len(query.Columns) == 0 {
			c, err := load(query.Table)
			if err != nil {
				return nil, err
			}
			query.Columns = c.ColumnNames()
		}
		return query, nil
	case queryir.Insert:
		if len(query.Columns) == 0 {
			c, err := load(query.Table)
			if err != nil {
				return nil, err
			}
			query.Columns = c.ColumnNames()
		}
		return query, nil
	case queryir.Upsert:
		if len(query.Columns) == 0 {
			c, err := load(query.Table)
			if err != nil {
				return nil, err
			}
			query.Columns = c.ColumnNames()
		}
		if len(query.UpdateColumns) == 0 {
			c, err := load(query.Table)
			if err != nil {
				return nil, err
			}
			for _, col := range c.UpdateColumns() {
				if slices.Contains(query.Columns, col) {
					query.UpdateColumns = append(query.UpdateColumns, col)
				}
			}
		}
		return query, nil
	default:
		// Count, Remove and Update only use the universe for key checks.
		return q, nil
	}
}
