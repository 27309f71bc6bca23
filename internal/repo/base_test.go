package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type widget struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.Table("widgets").AutoMigrate(&widget{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func newWidgets(t *testing.T) *Table[widget] {
	t.Helper()
	return NewTable[widget](newTestDB(t), "widgets", "id", "name", "color")
}

func seed(t *testing.T, table *Table[widget], names ...string) []widget {
	t.Helper()
	out := make([]widget, 0, len(names))
	for _, name := range names {
		w := widget{ID: uuid.NewString(), Name: name, Color: "red"}
		if err := table.Create(context.Background(), &w); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
		out = append(out, w)
	}
	return out
}

func TestFindByIDAndField(t *testing.T) {
	ctx := context.Background()
	table := newWidgets(t)
	seeded := seed(t, table, "gear")

	got, err := table.FindByID(ctx, seeded[0].ID)
	if err != nil || got == nil || got.Name != "gear" {
		t.Fatalf("find by id: %+v (%v)", got, err)
	}

	missing, err := table.FindByID(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Fatalf("absent row should be nil, nil; got %+v (%v)", missing, err)
	}

	byName, err := table.FindByField(ctx, "name", "gear")
	if err != nil || byName == nil || byName.ID != seeded[0].ID {
		t.Fatalf("find by field: %+v (%v)", byName, err)
	}
}

func TestUnknownColumnsAreRejected(t *testing.T) {
	ctx := context.Background()
	table := newWidgets(t)

	_, err := table.FindByField(ctx, "name; DROP TABLE widgets", "x")
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := table.Exists(ctx, "secret", 1); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error from exists, got %v", err)
	}
	if _, err := table.Count(ctx, map[string]any{"nope": 1}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error from count, got %v", err)
	}
	if _, err := table.Update(ctx, "x", map[string]any{"password": "p"}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error from update, got %v", err)
	}
}

func TestFindAllPaginates(t *testing.T) {
	ctx := context.Background()
	table := newWidgets(t)
	seed(t, table, "a", "b", "c")

	all, err := table.FindAll(ctx, 0, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all rows, got %d (%v)", len(all), err)
	}
	page, err := table.FindAll(ctx, 2, 2)
	if err != nil || len(page) != 1 {
		t.Fatalf("expected one row on second page, got %d (%v)", len(page), err)
	}
}

func TestUpdateSetsTimestampAndReturnsRow(t *testing.T) {
	ctx := context.Background()
	table := newWidgets(t)
	seeded := seed(t, table, "bolt")
	before := seeded[0].UpdatedAt

	time.Sleep(5 * time.Millisecond)
	updated, err := table.Update(ctx, seeded[0].ID, map[string]any{"color": "blue"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil || updated.Color != "blue" {
		t.Fatalf("expected updated row, got %+v", updated)
	}
	if !updated.UpdatedAt.After(before) {
		t.Fatalf("expected updated_at to advance: before=%s after=%s", before, updated.UpdatedAt)
	}

	absent, err := table.Update(ctx, uuid.NewString(), map[string]any{"color": "green"})
	if err != nil || absent != nil {
		t.Fatalf("update of absent row should be nil, nil; got %+v (%v)", absent, err)
	}
}

func TestDeleteExistsCount(t *testing.T) {
	ctx := context.Background()
	table := newWidgets(t)
	seeded := seed(t, table, "nut", "washer")

	exists, err := table.Exists(ctx, "name", "nut")
	if err != nil || !exists {
		t.Fatalf("expected nut to exist (%v)", err)
	}
	n, err := table.Count(ctx, map[string]any{"color": "red", "name": "washer"})
	if err != nil || n != 1 {
		t.Fatalf("expected AND-ed count of 1, got %d (%v)", n, err)
	}
	total, err := table.Count(ctx, nil)
	if err != nil || total != 2 {
		t.Fatalf("expected total 2, got %d (%v)", total, err)
	}

	removed, err := table.Delete(ctx, seeded[0].ID)
	if err != nil || !removed {
		t.Fatalf("expected delete to remove one row (%v)", err)
	}
	removed, err = table.Delete(ctx, seeded[0].ID)
	if err != nil || removed {
		t.Fatalf("second delete should report false (%v)", err)
	}
}

func TestDriverFailuresWrapAsDatabaseErrors(t *testing.T) {
	ctx := context.Background()
	table := newWidgets(t)
	seed(t, table, "dup")

	err := table.Create(ctx, &widget{ID: uuid.NewString(), Name: "dup"})
	if !pkgerrors.Is(err, pkgerrors.CodeDatabase) {
		t.Fatalf("expected database error, got %v", err)
	}

	broken := NewTable[widget](table.db, "missing_table", "id")
	if _, err := broken.FindAll(ctx, 0, 0); !pkgerrors.Is(err, pkgerrors.CodeDatabase) {
		t.Fatalf("expected database error for missing table, got %v", err)
	}
}

func TestWithDBUsesTransaction(t *testing.T) {
	ctx := context.Background()
	table := newWidgets(t)

	err := table.db.Transaction(func(tx *gorm.DB) error {
		w := widget{ID: uuid.NewString(), Name: "tx"}
		if err := table.WithDB(tx).Create(ctx, &w); err != nil {
			return err
		}
		return fmt.Errorf("rollback")
	})
	if err == nil {
		t.Fatal("expected rollback error")
	}
	if exists, _ := table.Exists(ctx, "name", "tx"); exists {
		t.Fatal("row created inside rolled back transaction must not persist")
	}
}
