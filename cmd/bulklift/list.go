package main

import (
	"fmt"
	"io"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/bulklift/internal/config"
	"github.com/yuya-takeyama/bulklift/pkg/lister"
)

func newListCmd(configPath *string, flags *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list [container]",
		Short: "List every object in a container",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath, *flags)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Container = args[0]
			}
			if err := cfg.ValidateStore(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			store, err := newStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			listing, err := lister.New(store, cfg.PageSize).List(cmd.Context(), cfg.Container)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", cfg.Container, err)
			}
			return printListing(cmd.OutOrStdout(), listing)
		},
	}
}

func printListing(w io.Writer, listing *lister.Listing) error {
	for _, rec := range listing.Records {
		modified := "-"
		if !rec.LastModified.IsZero() {
			modified = rec.LastModified.UTC().Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", modified, units.HumanSize(float64(rec.Size)), rec.Name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "count: %d\n", listing.Count); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "last object: %s\n", listing.LastName)
	return err
}
