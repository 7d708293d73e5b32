//go:build integration

package entity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-orm/database"
	"github.com/gaborage/go-bricks-orm/database/query"
	"github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/entity"
	"github.com/gaborage/go-bricks-orm/logger"
	"github.com/gaborage/go-bricks-orm/testing/containers"
	"github.com/gaborage/go-bricks-orm/uow"
)

type item struct {
	ID   int64  `db:"id" entity:"pk"`
	Name string `db:"name"`
	Qty  int64  `db:"qty"`
}

func (item) TableName() string { return "items" }

var itemDDL = map[types.Vendor]string{
	types.PostgreSQL: `CREATE TABLE items (id BIGINT PRIMARY KEY, name TEXT NOT NULL, qty BIGINT NOT NULL)`,
	types.Oracle:     `CREATE TABLE items (id NUMBER(19) PRIMARY KEY, name VARCHAR2(100) NOT NULL, qty NUMBER(19) NOT NULL)`,
}

type tagged struct {
	ID    int64    `db:"id" entity:"pk,autoincrement"`
	Value string   `db:"value"`
	Tags  []string `db:"tags"`
}

func (tagged) TableName() string { return "tagged" }

type label struct {
	ID    int64  `db:"id" entity:"pk,autoincrement"`
	Title string `db:"title"`
}

func (label) TableName() string { return "labels" }

var labelDDL = map[types.Vendor]string{
	types.PostgreSQL: `CREATE TABLE labels (id BIGSERIAL PRIMARY KEY, title TEXT NOT NULL)`,
	types.Oracle:     `CREATE TABLE labels (id NUMBER(19) GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, title VARCHAR2(100) NOT NULL)`,
}

func TestRepositoryAgainstRealDatabases(t *testing.T) {
	for _, vendor := range []types.Vendor{types.PostgreSQL, types.Oracle} {
		t.Run(vendor, func(t *testing.T) {
			ctx := context.Background()
			db := containers.Start(ctx, t, vendor)

			cfg := db.Config()
			cfg.Transaction.Isolation = "read committed"
			level, err := cfg.Transaction.IsolationLevel()
			require.NoError(t, err)

			drv, err := database.NewDriver(cfg, logger.New("error", false))
			require.NoError(t, err)
			t.Cleanup(func() { _ = drv.Close() })

			_, err = drv.Exec(ctx, itemDDL[vendor])
			require.NoError(t, err)

			work := uow.New(drv, uow.WithDefaultIsolation(level))
			items, err := entity.New[item](work, database.NewCompiler(vendor))
			require.NoError(t, err)

			runRepositoryScenario(ctx, t, work, items)

			_, err = drv.Exec(ctx, labelDDL[vendor])
			require.NoError(t, err)
			labels, err := entity.New[label](work, database.NewCompiler(vendor))
			require.NoError(t, err)
			runGeneratedKeyScenario(ctx, t, labels)

			if vendor == types.PostgreSQL {
				_, err = drv.Exec(ctx, `CREATE TABLE tagged (id BIGSERIAL PRIMARY KEY, value TEXT NOT NULL, tags TEXT[] NOT NULL)`)
				require.NoError(t, err)
				notes, err := entity.New[tagged](work, database.NewCompiler(vendor))
				require.NoError(t, err)
				runArrayScenario(ctx, t, notes)
			}
		})
	}
}

func runGeneratedKeyScenario(ctx context.Context, t *testing.T, labels *entity.Service[label]) {
	t.Helper()

	first, err := labels.AddOne(ctx, label{ID: 99, Title: "printer"})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.NotZero(t, first.ID)
	assert.NotEqual(t, int64(99), first.ID)
	assert.Equal(t, "printer", first.Title)

	created, err := labels.AddAll(ctx, []label{{Title: "scanner"}, {Title: "plotter"}})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "scanner", created[0].Title)
	assert.Greater(t, created[1].ID, created[0].ID)

	back, err := labels.GetOne(ctx, map[string]any{"id": first.ID})
	require.NoError(t, err)
	require.NotNil(t, back)
	assert.Equal(t, "printer", back.Title)
}

func runArrayScenario(ctx context.Context, t *testing.T, notes *entity.Service[tagged]) {
	t.Helper()

	empty, err := notes.AddOne(ctx, tagged{Value: "a", Tags: []string{}})
	require.NoError(t, err)
	require.NotNil(t, empty)
	assert.NotZero(t, empty.ID)
	assert.Equal(t, "a", empty.Value)
	assert.NotNil(t, empty.Tags)
	assert.Empty(t, empty.Tags)

	full, err := notes.AddOne(ctx, tagged{Value: "b", Tags: []string{"red", "dark blue"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "dark blue"}, full.Tags)

	back, err := notes.GetOne(ctx, map[string]any{"id": full.ID})
	require.NoError(t, err)
	require.NotNil(t, back)
	assert.Equal(t, []string{"red", "dark blue"}, back.Tags)
}

func runRepositoryScenario(ctx context.Context, t *testing.T, work *uow.UnitOfWork, items *entity.Service[item]) {
	t.Helper()

	err := work.Auto(ctx, func(ctx context.Context) error {
		_, err := items.Add(ctx, item{ID: 1, Name: "a", Qty: 1}, item{ID: 2, Name: "b", Qty: 2}, item{ID: 3, Name: "c", Qty: 3})
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = work.Auto(ctx, func(ctx context.Context) error {
		if _, err := items.AddOne(ctx, item{ID: 4, Name: "d"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := items.Count(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	updated, err := items.Update(ctx, map[string]any{"qty": 10}, map[string]any{"name": "b"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, int64(10), updated[0].Qty)

	none, err := items.Update(ctx, map[string]any{"qty": 10}, map[string]any{"name": "zzz"})
	require.NoError(t, err)
	assert.Empty(t, none)

	big, err := items.Select().Where(query.Gt("qty", 1)).OrderBy(query.Asc("id")).Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, big, 2)
	assert.Equal(t, []int64{2, 3}, []int64{big[0].ID, big[1].ID})

	exists, err := items.Exists(ctx, map[string]any{"name": "c"})
	require.NoError(t, err)
	assert.True(t, exists)

	total, err := entity.ScalarAs[int64](ctx, items.Select().Columns(query.Sum("qty")))
	require.NoError(t, err)
	assert.Equal(t, int64(14), total)

	upserted, err := items.UpsertOne(ctx, item{ID: 3, Name: "c", Qty: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(30), upserted.Qty)

	deleted, err := items.DeleteOne(ctx, map[string]any{"id": 1})
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, "a", deleted.Name)

	again, err := items.DeleteOne(ctx, map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Nil(t, again)

	rest, err := items.Get(ctx, map[string]any{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}
