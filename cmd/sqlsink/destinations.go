package main

import (
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"sqlsink/internal/schema"
)

// destinationView is the JSON shape printed by the destinations command.
type destinationView struct {
	Name        string   `json:"name"`
	Table       string   `json:"table"`
	Fields      []string `json:"fields"`
	PrimaryKeys []string `json:"primary_keys"`
	Mandatory   []string `json:"mandatory"`
	BatchSize   int      `json:"batch_size,omitempty"`
}

func viewOf(d *schema.Destination) destinationView {
	return destinationView{
		Name:        d.Name(),
		Table:       d.Table(),
		Fields:      d.Fields(),
		PrimaryKeys: d.PrimaryKeys(),
		Mandatory:   d.Mandatory(),
		BatchSize:   d.BatchSize(),
	}
}

func newDestinationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "destinations",
		Short: "Print the resolved destination descriptors as JSON",
		Long: `Resolve every configured destination, reflecting tables from the
database where configured, and print the descriptors the buffer would use.
Tables marked auto_create_table are created if missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.checkConfig(cmd); err != nil {
				return err
			}
			ctx := cmd.Context()
			repo, err := openStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			reg, err := buildRegistry(ctx, repo, a.cfg)
			if err != nil {
				return err
			}

			views := make([]destinationView, 0, reg.Len())
			for _, name := range reg.Names() {
				d, _ := reg.Lookup(name)
				views = append(views, viewOf(d))
			}
			out, err := json.MarshalIndent(views, "", "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
}
