package commands

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// Database drivers selectable through database.driver
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/modelkit/internal/cli/ui"
	"github.com/conduit-lang/modelkit/internal/orm/materialize"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
	"github.com/conduit-lang/modelkit/internal/orm/modelfile"
	"github.com/conduit-lang/modelkit/internal/orm/tracking"
)

// ErrNoDatabase is returned when no database URL is configured
var ErrNoDatabase = errors.New("database.url is not set")

type materializeOptions struct {
	entity string
	query  string
	driver string
	url    string
	asJSON bool
}

func newMaterializeCommand(a *app) *cobra.Command {
	opts := &materializeOptions{}

	cmd := &cobra.Command{
		Use:   "materialize <model-file>",
		Short: "Query a database and materialize rows into tracked entries",
		Long: `Run a query against the configured database and read the rows as entities of one
inheritance hierarchy. Rows are resolved to their concrete entity type through the
discriminator column and tracked by primary key; duplicate keys yield one entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.materialize(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.entity, "entity", "", "entity type to read (its hierarchy root is used)")
	cmd.Flags().StringVar(&opts.query, "query", "", "SQL query (default: SELECT * FROM <root entity type>)")
	cmd.Flags().StringVar(&opts.driver, "driver", "", "database driver, overrides database.driver")
	cmd.Flags().StringVar(&opts.url, "url", "", "database URL, overrides database.url")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print entries as JSON")
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func (a *app) materialize(cmd *cobra.Command, path string, opts *materializeOptions) error {
	file, _, err := modelfile.Load(path)
	if err != nil {
		return err
	}
	b, err := a.buildModel(file, a.conventionSet())
	if err != nil {
		return err
	}
	model := b.model

	id, ok := model.FindEntityType(opts.entity)
	if !ok {
		var known []string
		for _, et := range model.EntityTypes() {
			known = append(known, model.EntityTypeName(et))
		}
		ui.EntityTypeNotFound(opts.entity, known, a.noColor).Write(cmd.ErrOrStderr())
		return fmt.Errorf("entity type %s: %w", opts.entity, metadata.ErrNotFound)
	}
	root := model.RootType(id)

	driver := firstNonEmpty(opts.driver, a.cfg.Database.Driver)
	url := firstNonEmpty(opts.url, a.cfg.Database.URL)
	if url == "" {
		return ErrNoDatabase
	}
	query := firstNonEmpty(opts.query, `SELECT * FROM "`+model.EntityTypeName(root)+`"`)

	db, err := sql.Open(driver, url)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	states := tracking.NewStateManager(model, a.logger.Named("tracking"))
	m, err := materialize.New(model, root, states, a.logger.Named("materialize"))
	if err != nil {
		return err
	}
	entries, err := m.Query(cmd.Context(), db, query)
	if err != nil {
		return err
	}
	a.logger.Info("rows materialized",
		zap.String("entity_type", model.EntityTypeName(root)),
		zap.Int("rows", len(entries)),
		zap.Int("tracked", states.Len()))

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeEntriesJSON(out, model, entries)
	}
	renderEntries(out, model, entries, a.noColor)
	fmt.Fprintln(out, ui.FormatSuccess(fmt.Sprintf("%d rows materialized, %d tracked", len(entries), states.Len()), a.noColor))
	return nil
}

type entryJSON struct {
	EntityType string         `json:"entity_type"`
	State      string         `json:"state"`
	Key        []any          `json:"key,omitempty"`
	Values     map[string]any `json:"values"`
}

func writeEntriesJSON(w io.Writer, model *metadata.Model, entries []*tracking.Entry) error {
	docs := make([]entryJSON, len(entries))
	for i, e := range entries {
		docs[i] = entryJSON{
			EntityType: model.EntityTypeName(e.EntityType()),
			State:      e.State().String(),
			Key:        e.Key(),
			Values:     e.Values(),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

func renderEntries(w io.Writer, model *metadata.Model, entries []*tracking.Entry, noColor bool) {
	table := ui.NewTable(w, noColor, "Entity type", "State", "Key", "Values")
	for _, e := range entries {
		values := e.Values()
		fields := make([]string, 0, len(values))
		for name := range values {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		for i, name := range fields {
			fields[i] = fmt.Sprintf("%s=%v", name, values[name])
		}

		key := "-"
		if k := e.Key(); k != nil {
			parts := make([]string, len(k))
			for i, v := range k {
				parts[i] = fmt.Sprint(v)
			}
			key = strings.Join(parts, "/")
		}
		table.AddRow(model.EntityTypeName(e.EntityType()), e.State().String(), key, strings.Join(fields, " "))
	}
	table.Render()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
