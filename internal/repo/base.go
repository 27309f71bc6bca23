package repo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/packfinderz-identity/pkg/db"
	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Table is a CRUD store bound to one table and a fixed set of columns.
// Column names never come from callers unchecked; anything outside the set is rejected.
type Table[T any] struct {
	db      *gorm.DB
	name    string
	columns map[string]struct{}
}

// NewTable binds a store to table name and its allowed columns.
func NewTable[T any](conn *gorm.DB, name string, columns ...string) *Table[T] {
	allowed := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		allowed[c] = struct{}{}
	}
	return &Table[T]{db: conn, name: name, columns: allowed}
}

// WithDB returns a copy that runs against conn, typically a transaction.
func (t *Table[T]) WithDB(conn *gorm.DB) *Table[T] {
	clone := *t
	clone.db = conn
	return &clone
}

// DB returns the table-scoped connection bound to ctx.
func (t *Table[T]) DB(ctx context.Context) *gorm.DB {
	conn := t.db
	if ctx != nil {
		conn = conn.WithContext(ctx)
	}
	return conn.Table(t.name)
}

func (t *Table[T]) FindByID(ctx context.Context, id any) (*T, error) {
	var row T
	err := t.DB(ctx).Where("id = ?", id).Take(&row).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, t.wrap(err, "find by id")
	}
	return &row, nil
}

// FindByField loads the first row whose column equals value.
func (t *Table[T]) FindByField(ctx context.Context, field string, value any) (*T, error) {
	if err := t.checkColumn(field); err != nil {
		return nil, err
	}
	var row T
	err := t.DB(ctx).Where(eq(field, value)).Take(&row).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, t.wrap(err, "find by "+field)
	}
	return &row, nil
}

// FindAll returns an unordered page. A zero limit means no limit.
func (t *Table[T]) FindAll(ctx context.Context, limit, offset int) ([]T, error) {
	q := t.DB(ctx)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	rows := []T{}
	if err := q.Find(&rows).Error; err != nil {
		return nil, t.wrap(err, "find all")
	}
	return rows, nil
}

// Create inserts model and fills it with the stored values.
func (t *Table[T]) Create(ctx context.Context, model *T) error {
	if err := t.DB(ctx).Create(model).Error; err != nil {
		return t.wrap(err, "create")
	}
	return nil
}

// Update sets fields plus updated_at and returns the updated row, or nil when id is absent.
func (t *Table[T]) Update(ctx context.Context, id any, fields map[string]any) (*T, error) {
	values := make(map[string]any, len(fields)+1)
	for column, value := range fields {
		if err := t.checkColumn(column); err != nil {
			return nil, err
		}
		values[column] = value
	}
	values["updated_at"] = time.Now().UTC()

	res := t.DB(ctx).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return nil, t.wrap(res.Error, "update")
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return t.FindByID(ctx, id)
}

// Delete removes the row and reports whether exactly one row went away.
func (t *Table[T]) Delete(ctx context.Context, id any) (bool, error) {
	res := t.DB(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return false, t.wrap(res.Error, "delete")
	}
	return res.RowsAffected == 1, nil
}

func (t *Table[T]) Exists(ctx context.Context, field string, value any) (bool, error) {
	if err := t.checkColumn(field); err != nil {
		return false, err
	}
	var n int64
	if err := t.DB(ctx).Where(eq(field, value)).Limit(1).Count(&n).Error; err != nil {
		return false, t.wrap(err, "exists")
	}
	return n > 0, nil
}

// Count returns the number of rows matching every condition exactly.
func (t *Table[T]) Count(ctx context.Context, conditions map[string]any) (int64, error) {
	keys := make([]string, 0, len(conditions))
	for column := range conditions {
		if err := t.checkColumn(column); err != nil {
			return 0, err
		}
		keys = append(keys, column)
	}
	sort.Strings(keys)

	q := t.DB(ctx)
	for _, column := range keys {
		q = q.Where(eq(column, conditions[column]))
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, t.wrap(err, "count")
	}
	return n, nil
}

func (t *Table[T]) checkColumn(column string) error {
	if _, ok := t.columns[column]; !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown column %q on %s", column, t.name))
	}
	return nil
}

func (t *Table[T]) wrap(err error, op string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, fmt.Sprintf("%s: %s", t.name, op))
}

func eq(column string, value any) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: column}, Value: value}
}
