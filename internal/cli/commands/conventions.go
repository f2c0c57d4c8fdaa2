package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/modelkit/internal/cli/ui"
	"github.com/conduit-lang/modelkit/internal/orm/dispatch"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

func newConventionsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "conventions",
		Short: "List the enabled conventions in delivery order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set := a.conventionSet()
			d := dispatch.New()
			set.Register(d)

			events := make(map[string][]string)
			for kind := metadata.EntityTypeAdded; kind <= metadata.DiscriminatorChanged; kind++ {
				for _, name := range d.Registry().Names(kind) {
					events[name] = append(events[name], kind.String())
				}
			}

			out := cmd.OutOrStdout()
			table := ui.NewTable(out, a.noColor, "#", "Convention", "Events")
			for i, name := range set.Names() {
				table.AddRow(fmt.Sprint(i+1), name, strings.Join(events[name], ", "))
			}
			table.Render()

			if disabled := a.cfg.Conventions.Disabled; len(disabled) > 0 {
				fmt.Fprintln(out)
				ui.Message{
					Level:   ui.LevelInfo,
					Problem: "disabled: " + strings.Join(disabled, ", "),
					NoColor: a.noColor,
				}.Write(out)
			}
			return nil
		},
	}
}
