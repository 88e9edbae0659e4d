package cli

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "Poll validation status for a prior submission",
	Long:  `Poll obterEstado for a prior submission and reconcile the per-document statuses into the local backup`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		resp, err := svc.CheckStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return printJSON(resp)
	},
}
