//go:build integration
// +build integration

package plugin_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/cartagen/dsl"
	"github.com/liamcoop/cartagen/plugin"

	_ "github.com/lib/pq"
)

// setupTestDB starts PostgreSQL in a container and applies the schema.
func setupTestDB(t *testing.T) *sqlx.DB {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "cartagen_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=cartagen_test sslmode=disable", host, port.Port())

	var db *sqlx.DB
	for i := 0; i < 30; i++ {
		if db, err = sqlx.Connect("postgres", dsn); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "connect to database")
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "migrations", "000001_plugin_documents.up.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func samplePack() *plugin.Pack {
	p := &plugin.Pack{ID: "carta"}
	p.Manifest = plugin.Manifest{Name: "Carta", Version: "1.0", OutputPrefix: "carta"}
	p.Fields.Fields.Set("zeta", &plugin.FieldSpec{Type: plugin.FieldText, Required: true})
	p.Fields.Fields.Set("alfa", &plugin.FieldSpec{Type: plugin.FieldBool, Condition: &dsl.Condition{Expression: "zeta == 'x'"}})
	p.Logic.Rules.Set("r1", &plugin.Rule{
		Condition: dsl.Compare(dsl.OpEquals, "alfa", true),
		Action:    plugin.Action{Type: plugin.ActionIncludeBlock, Elements: []string{"bloque"}},
	})
	p.DecisionMap.Decisions.Set("d1", &plugin.Decision{Rules: []string{"r1"}, Exclusive: true})
	p.Texts.Blocks.Set("segundo", "b")
	p.Texts.Blocks.Set("primero", "a")
	return p
}

func TestPostgresProviderRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	provider := plugin.NewPostgresProvider(db, "/srv/templates")

	require.NoError(t, provider.SavePack(ctx, samplePack()))

	pack, err := provider.Load(ctx, "carta")
	require.NoError(t, err)
	require.NoError(t, plugin.ValidatePack(pack))

	assert.Equal(t, filepath.Join("/srv/templates", "carta"), pack.Dir)
	assert.Equal(t, "Carta", pack.Manifest.Name)
	assert.Equal(t, []string{"zeta", "alfa"}, pack.Fields.Fields.Keys())
	assert.Equal(t, []string{"segundo", "primero"}, pack.Texts.Blocks.Keys())
	assert.Equal(t, "zeta == 'x'", pack.Field("alfa").Condition.Expression)

	ids, err := provider.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"carta"}, ids)
}

func TestPostgresProviderUpsertAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	provider := plugin.NewPostgresProvider(db, "")

	require.NoError(t, provider.SavePack(ctx, samplePack()))
	require.NoError(t, provider.Save(ctx, "carta", plugin.KindManifest, plugin.Manifest{Name: "Carta v2"}))

	pack, err := provider.Load(ctx, "carta")
	require.NoError(t, err)
	assert.Equal(t, "Carta v2", pack.Manifest.Name)

	assert.Error(t, provider.Save(ctx, "carta", "unknown", map[string]any{}))

	require.NoError(t, provider.Delete(ctx, "carta"))
	_, err = provider.Load(ctx, "carta")
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)
	assert.ErrorIs(t, provider.Delete(ctx, "carta"), plugin.ErrPluginNotFound)
}

func TestManagerOverPostgres(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	provider := plugin.NewPostgresProvider(db, "")
	require.NoError(t, provider.SavePack(ctx, samplePack()))

	m := plugin.NewManager(provider, nil)
	pack, err := m.Get(ctx, "carta")
	require.NoError(t, err)

	again, err := m.Get(ctx, "carta")
	require.NoError(t, err)
	assert.Same(t, pack, again)

	_, err = m.Get(ctx, "otra")
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)
}
