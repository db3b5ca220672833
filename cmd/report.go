package cmd

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"subject-eval-scraper/models"
	"subject-eval-scraper/services"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var variable string
	var level string
	var terms []string
	var filter services.Filter

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize one course-table variable per year",
		Long: "Summarize one course-table variable per year with respondent-weighted statistics.\n\n" +
			"Variables: " + strings.Join(services.VariableNames(), ", "),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger := ctx.ensureConfig()

			var err error
			if filter.Level, err = parseLevel(level); err != nil {
				return err
			}
			if filter.Terms, err = parseTerms(terms); err != nil {
				return err
			}

			courses, _, err := ctx.loadTables()
			if err != nil {
				return err
			}
			report, err := services.NewInsightService(logger).Generate(courses, variable, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), services.RenderReport(report))
			return nil
		},
	}

	cmd.Flags().StringVarP(&variable, "variable", "v", "Subject Rating (Avg)", "Course-table column to summarize")
	cmd.Flags().StringVar(&level, "level", "", "Restrict to U (undergraduate) or G (graduate) subjects")
	cmd.Flags().StringSliceVar(&terms, "terms", nil, "Restrict to these terms (Fall, Spring, IAP, Summer)")
	cmd.Flags().IntVar(&filter.MinYear, "min-year", 0, "Earliest year to include")
	cmd.Flags().IntVar(&filter.MaxYear, "max-year", 0, "Latest year to include")
	cmd.Flags().Float64Var(&filter.MinRespondents, "min-respondents", 0, "Drop offerings with fewer respondents")

	return cmd
}

func parseLevel(s string) (models.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "U", "UNDERGRAD", "UNDERGRADUATE":
		return models.LevelUndergraduate, nil
	case "G", "GRAD", "GRADUATE":
		return models.LevelGraduate, nil
	case "UNKNOWN":
		return models.LevelUnknown, nil
	}
	return "", eris.Errorf("report: unknown level %q (use U or G)", s)
}

func parseTerms(raw []string) ([]models.Term, error) {
	var out []models.Term
	for _, s := range raw {
		t, ok := models.ParseTerm(s)
		if !ok {
			return nil, eris.Errorf("report: unknown term %q", s)
		}
		out = append(out, t)
	}
	return out, nil
}
