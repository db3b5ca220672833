package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"subject-eval-scraper/services"
)

func newTeachersCommand(ctx *commandContext) *cobra.Command {
	var minRatings int
	var top int

	cmd := &cobra.Command{
		Use:   "teachers",
		Short: "Rank instructors by their aggregate rating",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger := ctx.ensureConfig()
			_, teachers, err := ctx.loadTables()
			if err != nil {
				return err
			}
			ranked := services.NewInsightService(logger).TopTeachers(teachers, minRatings, top)
			if len(ranked) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No instructors match")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), services.RenderTeachers(ranked))
			return nil
		},
	}

	cmd.Flags().IntVar(&minRatings, "min-ratings", 10, "Minimum number of ratings an instructor needs")
	cmd.Flags().IntVarP(&top, "top", "n", 20, "Number of instructors to show (0 = all)")

	return cmd
}
