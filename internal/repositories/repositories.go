package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/playlog/internal/models"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent validates name as a bare SQL identifier and returns it double-quoted.
func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// tableColumns returns the declared columns of relation, or nil when it does not exist.
func tableColumns(ctx context.Context, q queryer, relation string) ([]models.Column, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?)", relation)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", relation, err)
	}
	defer rows.Close()

	var columns []models.Column
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", relation, err)
		}
		c.Type = strings.ToUpper(c.Type)
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return columns, nil
}
