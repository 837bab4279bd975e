package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/config"
	"beacon/internal/domain/models"
	"beacon/internal/domain/services"
)

// NewSalaryCommand creates the salary command.
func NewSalaryCommand(rootOpts *RootOptions) *cobra.Command {
	var reminder bool
	var employer string

	cmd := &cobra.Command{
		Use:   "salary <ledger.json>",
		Short: "Summarize a salary ledger",
		Long: `Summarize a salary ledger file and optionally draft the payment reminder.

The ledger is a JSON object {"employer": "...", "records": [{"month", "expected", "received"}]}.
Use "-" to read it from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readLedger(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if employer != "" {
				req.Employer = employer
			}

			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			tracker := services.NewSalaryTracker(cfg.Salary.Signature, time.Now)
			return runSalary(rootOpts, tracker, req, reminder, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&reminder, "reminder", false, "draft the reminder notice")
	cmd.Flags().StringVar(&employer, "employer", "", "employer name, overrides the ledger")

	return cmd
}

func readLedger(stdin io.Reader, path string) (*models.SalaryLedgerRequest, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req models.SalaryLedgerRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}
	return &req, nil
}

func runSalary(opts *RootOptions, tracker *services.SalaryTracker, req *models.SalaryLedgerRequest, reminder bool, out io.Writer) error {
	if reminder {
		notice, err := tracker.Reminder(req)
		if err != nil {
			return err
		}
		if opts.Format == "json" {
			return writeJSON(out, notice)
		}
		fmt.Fprintf(out, "Subject: %s\n\n%s\n%s", notice.Subject, notice.Body, notice.Statement)
		return nil
	}

	if err := tracker.ValidateLedger(req, false); err != nil {
		return err
	}
	summary := tracker.Summarize(req.Employer, req.Records)
	if opts.Format == "json" {
		return writeJSON(out, summary)
	}

	if summary.Employer != "" {
		fmt.Fprintf(out, "Employer:    %s\n", summary.Employer)
	}
	fmt.Fprintf(out, "Months:      %d\n", summary.Months)
	fmt.Fprintf(out, "Expected:    %.2f\n", summary.TotalExpected)
	fmt.Fprintf(out, "Received:    %.2f\n", summary.TotalReceived)
	fmt.Fprintf(out, "Pending:     %.2f\n", summary.TotalPending)
	fmt.Fprintf(out, "Reliability: %d%% (%s)\n", summary.ReliabilityScore, summary.ReliabilityLevel)
	return nil
}
