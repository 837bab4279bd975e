package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"beacon/internal/domain/services"
)

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score [description]",
		Short: "Score a complaint description",
		Long: `Run the risk scorer and priority check on a description.

Reads the description from stdin when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = strings.TrimRight(string(data), "\r\n")
			}
			return runScore(rootOpts, text, cmd.OutOrStdout())
		},
	}
}

func runScore(opts *RootOptions, text string, out io.Writer) error {
	preview := struct {
		RiskScore  float64 `json:"risk_score"`
		RiskLabel  string  `json:"risk_label"`
		RiskReason string  `json:"risk_reason"`
		Priority   string  `json:"priority,omitempty"`
	}{}

	risk := services.NewRiskScorer().Score(text)
	preview.RiskScore = risk.RiskScore
	preview.RiskLabel = string(risk.RiskLabel)
	preview.RiskReason = risk.RiskReason
	preview.Priority = string(services.AssessPriority(text))

	if opts.Format == "json" {
		return writeJSON(out, preview)
	}

	fmt.Fprintf(out, "Score:    %.2f\n", preview.RiskScore)
	fmt.Fprintf(out, "Label:    %s\n", preview.RiskLabel)
	fmt.Fprintf(out, "Reason:   %s\n", preview.RiskReason)
	if preview.Priority != "" {
		fmt.Fprintf(out, "Priority: %s\n", preview.Priority)
	}
	return nil
}
