package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelkit/internal/cli/ui"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
	"github.com/conduit-lang/modelkit/internal/orm/modelcache"
	"github.com/conduit-lang/modelkit/internal/orm/modelfile"
)

func newDescribeCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "describe <model-file> [entity-type...]",
		Short: "Show the metadata derived for a model file",
		Long: `Build the model described by a model file, run the configured conventions over it
and print the resulting entity types. When entity type names are given, only
those types are shown.

Snapshots are cached when cache.backend is memory or redis; the cache key covers
the model file contents and the enabled conventions.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.snapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			selected, err := selectEntityTypes(snap, args[1:])
			if err != nil {
				var known []string
				for _, et := range snap.EntityTypes {
					known = append(known, et.Name)
				}
				ui.EntityTypeNotFound(err.Error(), known, a.noColor).Write(cmd.ErrOrStderr())
				return fmt.Errorf("entity type %s: %w", err.Error(), metadata.ErrNotFound)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(selected)
			}
			renderSnapshot(out, snap, selected, a.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

// snapshot returns the snapshot of the model file, from the cache when possible
func (a *app) snapshot(ctx context.Context, path string) (*metadata.Snapshot, error) {
	file, data, err := modelfile.Load(path)
	if err != nil {
		return nil, err
	}
	set := a.conventionSet()

	cache, closeCache, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	defer closeCache()

	key := modelcache.Key(data, set.Names())
	if cache != nil {
		snap, err := modelcache.Load(ctx, cache, key)
		if err == nil {
			a.logger.Debug("snapshot cache hit", zap.String("key", key))
			return snap, nil
		}
		if !modelcache.IsCacheMiss(err) {
			a.logger.Warn("snapshot cache read failed", zap.Error(err))
		}
	}

	b, err := a.buildModel(file, set)
	if err != nil {
		return nil, err
	}
	snap := b.model.Snapshot()

	if cache != nil {
		if err := modelcache.Store(ctx, cache, key, snap, a.cfg.Cache.TTL); err != nil {
			a.logger.Warn("snapshot cache write failed", zap.Error(err))
		}
	}
	return snap, nil
}

// selectEntityTypes returns the named entity types, or all of them when names is
// empty. The error text is the first unknown name.
func selectEntityTypes(snap *metadata.Snapshot, names []string) ([]metadata.EntityTypeSnapshot, error) {
	if len(names) == 0 {
		return snap.EntityTypes, nil
	}
	selected := make([]metadata.EntityTypeSnapshot, 0, len(names))
	for _, name := range names {
		et, ok := snap.Find(name)
		if !ok {
			return nil, fmt.Errorf("%s", name)
		}
		selected = append(selected, *et)
	}
	return selected, nil
}

// hierarchyRoot walks base types up to the root of et's hierarchy
func hierarchyRoot(snap *metadata.Snapshot, et *metadata.EntityTypeSnapshot) *metadata.EntityTypeSnapshot {
	for et.Base != "" {
		base, ok := snap.Find(et.Base)
		if !ok {
			break
		}
		et = base
	}
	return et
}

func renderSnapshot(w io.Writer, snap *metadata.Snapshot, selected []metadata.EntityTypeSnapshot, noColor bool) {
	for i := range selected {
		et := &selected[i]
		ui.Header(w, et.Name, noColor)

		kv := ui.NewKeyValueTable(w, noColor)
		if et.Base != "" {
			kv.AddRow("Base", et.Base)
		}
		switch {
		case et.Keyless:
			kv.AddRow("Primary key", "(keyless)")
		case len(et.PrimaryKey) > 0:
			kv.AddRow("Primary key", strings.Join(et.PrimaryKey, ", "))
		case et.Base == "":
			kv.AddRow("Primary key", "(none)")
		}
		if et.Owned {
			kv.AddRow("Owned", "yes")
		}
		if d := hierarchyRoot(snap, et).Discriminator; d != nil {
			if et.Discriminator != nil {
				kv.AddRow("Discriminator", fmt.Sprintf("%s (%s)", d.Property, d.Type))
			}
			if v, ok := d.Values[et.Name]; ok {
				kv.AddRow("Discriminator value", v)
			}
		}
		kv.Render()
		fmt.Fprintln(w)

		props := ui.NewTable(w, noColor, "Property", "Type", "Generated", "Token")
		for _, p := range et.Properties {
			var flags []string
			if p.ConcurrencyToken {
				flags = append(flags, "concurrency")
			}
			if p.Shadow {
				flags = append(flags, "shadow")
			}
			props.AddRow(p.Name, p.Type, p.ValueGenerated, strings.Join(flags, ","))
		}
		if props.Len() > 0 {
			props.Render()
			fmt.Fprintln(w)
		}

		if len(et.ForeignKeys) > 0 {
			fks := ui.NewTable(w, noColor, "Foreign key", "Principal", "Kind")
			for _, fk := range et.ForeignKeys {
				kind := "reference"
				switch {
				case fk.BaseLinking:
					kind = "base"
				case fk.Ownership:
					kind = "ownership"
				}
				fks.AddRow(strings.Join(fk.Properties, ", "), fk.Principal, kind)
			}
			fks.Render()
			fmt.Fprintln(w)
		}
	}
}
