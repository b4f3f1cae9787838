package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// document is one row of plugin_documents.
type document struct {
	PluginID   string    `db:"plugin_id"`
	Kind       string    `db:"kind"`
	Definition []byte    `db:"definition"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// PostgresProvider reads packs from the plugin_documents table. Definitions
// are stored as json (not jsonb) so mapping order survives the round trip.
type PostgresProvider struct {
	db *sqlx.DB
	// templateRoot is joined with the plugin id to form Pack.Dir.
	templateRoot string
}

// NewPostgresProvider creates a provider over db. Template paths in the
// manifests are resolved under templateRoot/<plugin_id>.
func NewPostgresProvider(db *sqlx.DB, templateRoot string) *PostgresProvider {
	return &PostgresProvider{db: db, templateRoot: templateRoot}
}

// Load fetches and decodes every stored document of a plugin.
func (s *PostgresProvider) Load(ctx context.Context, pluginID string) (*Pack, error) {
	var docs []document
	err := s.db.SelectContext(ctx, &docs, `
		SELECT plugin_id, kind, definition, updated_at
		FROM plugin_documents
		WHERE plugin_id = $1
		ORDER BY kind ASC
	`, pluginID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugin %s: %w", pluginID, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, pluginID)
	}

	pack := &Pack{ID: pluginID, Dir: filepath.Join(s.templateRoot, pluginID)}
	for _, d := range docs {
		if err := pack.decode(d.Kind, d.Definition, json.Unmarshal); err != nil {
			return nil, fmt.Errorf("invalid %s document for plugin %s: %w", d.Kind, pluginID, err)
		}
	}
	return pack, nil
}

// List returns the distinct plugin ids in the table.
func (s *PostgresProvider) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT plugin_id FROM plugin_documents ORDER BY plugin_id ASC
	`); err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	return ids, nil
}

// SavePack stores every section of pack under its id. Sections are encoded
// from their typed form so ordered mappings keep their order.
func (s *PostgresProvider) SavePack(ctx context.Context, pack *Pack) error {
	for _, kind := range Kinds {
		section, err := pack.section(kind)
		if err != nil {
			return err
		}
		if err := s.Save(ctx, pack.ID, kind, section); err != nil {
			return err
		}
	}
	return nil
}

// Save upserts one document. definition must encode to the JSON shape of
// the document kind.
func (s *PostgresProvider) Save(ctx context.Context, pluginID, kind string, definition any) error {
	raw, err := json.Marshal(definition)
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", kind, err)
	}
	if err := (&Pack{}).decode(kind, raw, json.Unmarshal); err != nil {
		return fmt.Errorf("invalid %s document: %w", kind, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plugin_documents (plugin_id, kind, definition, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (plugin_id, kind)
		DO UPDATE SET definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at
	`, pluginID, kind, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save %s document for plugin %s: %w", kind, pluginID, err)
	}
	return nil
}

// Delete removes every document of a plugin.
func (s *PostgresProvider) Delete(ctx context.Context, pluginID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM plugin_documents WHERE plugin_id = $1`, pluginID)
	if err != nil {
		return fmt.Errorf("failed to delete plugin: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, pluginID)
	}
	return nil
}
