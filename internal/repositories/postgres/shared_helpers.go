package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// finishedStatuses are the result states that count towards scores and rankings.
var finishedStatuses = []models.ResultStatus{models.ResultCompleted, models.ResultTimedOut}

// orderColumn sorts by the "order" column, which is a reserved word and must be quoted.
func orderColumn(table string, desc bool) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Table: table, Name: "order"}, Desc: desc}
}

// notFound maps gorm's sentinel to repositories.ErrNotFound and wraps everything else.
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, repositories.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// applyPaginationAndSort applies pagination and sorting with SQL injection protection
func applyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int, allowed ...string) *gorm.DB {
	allowedSortColumns := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"id":         true,
	}
	for _, col := range allowed {
		allowedSortColumns[col] = true
	}

	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	desc := !strings.EqualFold(sortOrder, "asc")
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: desc})

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}

// likePattern escapes a user search term for a case-insensitive LIKE.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(q))) + "%"
}
