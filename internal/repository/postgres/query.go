package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/klari-app/klari-server/internal/model"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// where accumulates AND-ed predicates with positional arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// next returns the placeholder for the next argument appended after the filter.
func (w *where) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

// productWhere translates a ProductFilter to SQL. It mirrors ProductFilter.Matches.
func productWhere(f model.ProductFilter) *where {
	w := &where{}
	if f.Category != nil {
		w.add("category = ?", string(*f.Category))
	}
	if f.Time != nil {
		w.add("(application_time = ? OR application_time = '"+string(model.TimeBoth)+"')", string(*f.Time))
	}
	if f.SkinType != nil {
		w.add("? = ANY(skin_types)", string(*f.SkinType))
	}
	if f.Goals != nil {
		w.add("goals && ?::text[]", goalStrings(f.Goals))
	}
	if f.Brand != "" {
		w.add("LOWER(brand) = LOWER(?)", f.Brand)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		w.add("(name ILIKE ? OR brand ILIKE ?)", likePattern(q), likePattern(q))
	}
	return w
}

// orderBy renders a whitelisted ORDER BY for products, always tie-broken by id.
func orderBy(page model.PageRequest, prefix string) string {
	dir := "ASC"
	if page.Desc {
		dir = "DESC"
	}
	switch page.Sort {
	case model.SortByName:
		return fmt.Sprintf(" ORDER BY LOWER(%[1]sname) %[2]s, %[1]sid %[2]s", prefix, dir)
	case model.SortByBrand:
		return fmt.Sprintf(" ORDER BY LOWER(%[1]sbrand) %[2]s, %[1]sid %[2]s", prefix, dir)
	default:
		return fmt.Sprintf(" ORDER BY %sid %s", prefix, dir)
	}
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

func goalStrings(goals []model.Goal) []string {
	out := make([]string, 0, len(goals))
	for _, g := range goals {
		out = append(out, string(g))
	}
	return out
}

func toGoals(raw []string) []model.Goal {
	out := make([]model.Goal, 0, len(raw))
	for _, r := range raw {
		out = append(out, model.Goal(r))
	}
	return out
}

func skinTypeStrings(types []model.SkinType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

func toSkinTypes(raw []string) []model.SkinType {
	out := make([]model.SkinType, 0, len(raw))
	for _, r := range raw {
		out = append(out, model.SkinType(r))
	}
	return out
}
