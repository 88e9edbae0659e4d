package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/efactura-ao/agt-bridge/internal/agt"
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Manage numbering series",
}

var seriesYear int

var seriesRequestCmd = &cobra.Command{
	Use:   "request <prefix> <document-type>",
	Short: "Request a new numbering series",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		year := seriesYear
		if year == 0 {
			year = time.Now().Year()
		}

		resp, err := svc.RequestSeries(cmd.Context(), agt.RequestSeriesRequest{
			SeriesPrefix: args[0],
			DocumentType: agt.DocumentType(args[1]),
			Year:         year,
		})
		if err != nil {
			return err
		}

		return printJSON(resp)
	},
}

var seriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered numbering series",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		resp, err := svc.ListSeries(cmd.Context(), seriesYear)
		if err != nil {
			return err
		}

		return printJSON(resp)
	},
}

func init() {
	seriesRequestCmd.Flags().IntVar(&seriesYear, "year", 0, "series year (defaults to the current year)")
	seriesListCmd.Flags().IntVar(&seriesYear, "year", 0, "filter by year")
	seriesCmd.AddCommand(seriesRequestCmd)
	seriesCmd.AddCommand(seriesListCmd)
}
