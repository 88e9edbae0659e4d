package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/efactura-ao/agt-bridge/internal/agt"
)

var submitCmd = &cobra.Command{
	Use:   "submit <envelope-file>",
	Short: "Validate, sign and submit an envelope",
	Long:  `Validate, sign and submit an envelope JSON file to the AGT web service`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0]) // #nosec G304 -- operator-supplied path
		if err != nil {
			return fmt.Errorf("failed to read envelope file: %w", err)
		}

		var env agt.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("envelope file is not valid JSON: %w", err)
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		result, err := svc.Submit(cmd.Context(), &env)
		if err != nil {
			return err
		}

		appLogger.Info("submission accepted",
			slog.String("submission_id", result.SubmissionID),
			slog.String("request_id", result.RequestID),
		)
		for _, entry := range result.ErrorList {
			appLogger.Warn("remote reported a problem",
				slog.String("code", entry.Code),
				slog.String("description", entry.Description),
			)
		}

		return printJSON(result)
	},
}

func printJSON(payload any) error {
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
