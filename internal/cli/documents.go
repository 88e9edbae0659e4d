package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect documents and their remote state",
}

var documentsRefresh bool

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents from the backup mirror (or refresh from AGT)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		end := time.Now().UTC()
		view, err := svc.ListDocuments(cmd.Context(), documentsRefresh, end.AddDate(0, -1, 0), end)
		if err != nil {
			return err
		}

		return printJSON(view)
	},
}

var documentsSyncCmd = &cobra.Command{
	Use:   "sync <document-no>",
	Short: "Fetch the full-detail remote record for one document",
	Long:  `Fetch the full-detail record via consultarFactura and reconcile it into the local backup`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		view, err := svc.SyncDocument(cmd.Context(), args[0], true, cfg.CallTimeout)
		if err != nil {
			return err
		}

		return printJSON(view)
	},
}

func init() {
	documentsListCmd.Flags().BoolVar(&documentsRefresh, "refresh", false, "refresh the listing from AGT before printing")
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsSyncCmd)
}
