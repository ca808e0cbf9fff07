package store

import (
	"fmt"
	"strings"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Page is an offset/limit window.
type Page struct {
	Offset int
	Limit  int
}

// Normalize applies the default window: offset 0, limit DefaultLimit.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// SQL renders the LIMIT/OFFSET suffix for the normalized window.
func (p Page) SQL() string {
	p = p.Normalize()
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.Limit, p.Offset)
}

// Where accumulates AND-ed predicates and their positional arguments.
type Where struct {
	clauses []string
	args    []any
}

// Arg registers a value and returns its placeholder.
func (w *Where) Arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// And appends a predicate built with placeholders from Arg.
func (w *Where) And(clause string) {
	w.clauses = append(w.clauses, clause)
}

// SQL renders the WHERE clause, or an empty string when no predicate was added.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *Where) Args() []any {
	return w.args
}

// Assignments accumulates SET column=value pairs for a partial update.
type Assignments struct {
	sets []string
	args []any
}

func (a *Assignments) Set(column string, v any) {
	a.args = append(a.args, v)
	a.sets = append(a.sets, fmt.Sprintf("%s = $%d", column, len(a.args)))
}

// SetRaw appends an expression that takes no argument, such as updated_at = now().
func (a *Assignments) SetRaw(expr string) {
	a.sets = append(a.sets, expr)
}

func (a *Assignments) Empty() bool {
	return len(a.sets) == 0
}

// UpdateSQL renders "UPDATE table SET ... WHERE id = $n" with the id bound last.
func (a *Assignments) UpdateSQL(table string, id int64) (string, []any) {
	args := append(append([]any{}, a.args...), id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(a.sets, ", "), len(args))
	return sql, args
}

// Contains turns free text into an ILIKE pattern matching it anywhere,
// escaping LIKE metacharacters.
func Contains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
