package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

func verifyCmd() *cobra.Command {
	var projectID, personaID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that persona scores match their ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (projectID == "") == (personaID == "") {
				return fmt.Errorf("exactly one of --project or --persona is required")
			}

			db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			cat, err := loadCatalog()
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			engine := newEngine(db, cat, nil)

			var ids []uuid.UUID
			if personaID != "" {
				id, err := uuid.Parse(personaID)
				if err != nil {
					return fmt.Errorf("parse persona id: %w", err)
				}
				ids = append(ids, id)
			} else {
				pid, err := uuid.Parse(projectID)
				if err != nil {
					return fmt.Errorf("parse project id: %w", err)
				}
				members, err := db.ListMembers(ctx, pid, false)
				if err != nil {
					return fmt.Errorf("list members: %w", err)
				}
				for _, m := range members {
					ids = append(ids, m.ID)
				}
			}

			bad := 0
			for _, id := range ids {
				audit, err := engine.Verify(ctx, id)
				switch {
				case errors.Is(err, persona.ErrInconsistent):
					bad++
					fmt.Printf("%s  MISMATCH  scores=%.2f/%.2f ledger=%.2f/%.2f (%d entries)\n",
						id, audit.ProfessionalismScore, audit.QualityScore,
						audit.Ledger.Professionalism, audit.Ledger.Quality, audit.Ledger.Entries)
				case err != nil:
					return fmt.Errorf("verify %s: %w", id, err)
				default:
					fmt.Printf("%s  OK  scores=%.2f/%.2f (%d entries)\n",
						id, audit.ProfessionalismScore, audit.QualityScore, audit.Ledger.Entries)
				}
			}

			fmt.Printf("Verified %d personas, %d inconsistent\n", len(ids), bad)
			if bad > 0 {
				return fmt.Errorf("%d personas inconsistent", bad)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "verify every persona in a project")
	cmd.Flags().StringVar(&personaID, "persona", "", "verify a single persona")
	return cmd
}
