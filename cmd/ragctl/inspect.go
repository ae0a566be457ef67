package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"clinical-rag/internal/indexer"
	"clinical-rag/internal/rag"
)

func (c *cli) collectionsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List collections grouped by owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := indexer.BuildInventory(cmd.Context(), c.app.VectorStore, c.app.Directory, c.app.Config.EmbeddingModelName)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, inv)
			}

			groups := []struct {
				name  string
				items []indexer.CollectionSummary
			}{
				{"Clinician collections", inv.Clinician},
				{"General collections", inv.General},
				{"Other collections", inv.Other},
			}
			for _, g := range groups {
				cmd.Printf("%s (%d)\n", g.name, len(g.items))
				for _, s := range g.items {
					if s.Owner != "" {
						cmd.Printf("  %-40s %6d points  owner=%s\n", s.Name, s.Points, s.Owner)
					} else {
						cmd.Printf("  %-40s %6d points\n", s.Name, s.Points)
					}
				}
			}
			cmd.Printf("Total points: %d  index version: %s\n", inv.TotalPoints, inv.IndexVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func (c *cli) resolveCmd() *cobra.Command {
	var (
		clinician string
		bodyPart  string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the collections a query would search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := c.app.Resolver.Resolve(cmd.Context(), rag.QueryContext{ClinicianID: clinician, BodyPart: bodyPart})

			cmd.Printf("Mode: %s\n", res.Mode)
			if res.Mode == rag.ModeClinician {
				printList(cmd, "Own", res.Own)
				printList(cmd, "Shared", res.Shared)
				printList(cmd, "Permitted", res.Permitted)
			}
			printList(cmd, "Search order", res.Collections)
			return nil
		},
	}
	cmd.Flags().StringVar(&clinician, "clinician", "", "clinician id")
	cmd.Flags().StringVar(&bodyPart, "body-part", "", "body part, e.g. knee")
	return cmd
}

func (c *cli) specialtiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "specialties CLINICIAN_ID",
		Short: "Show a clinician's specialties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specialties, err := c.app.Directory.Specialties(cmd.Context(), args[0], c.app.VectorStore)
			if err != nil {
				return err
			}
			return printJSON(cmd, specialties)
		},
	}
}

func printList(cmd *cobra.Command, label string, names []string) {
	cmd.Printf("%s (%d)\n", label, len(names))
	for i, n := range names {
		cmd.Printf("  %2d. %s\n", i+1, n)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
