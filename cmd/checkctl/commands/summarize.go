package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/checkcall/internal/summary"
)

// NewSummarizeCmd creates the summarize command.
func NewSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <transcript.json>",
		Short: "Distill a transcript into its structured summary",
		Long: `Summarize runs the post-call extraction over a transcript file and prints
the resulting summary as JSON. Emergency transcripts produce an escalation
record; everything else produces a routine status record.

Examples:
  checkctl summarize call.json`,
		Args: cobra.ExactArgs(1),
		RunE: runSummarize,
	}

	return cmd
}

func runSummarize(cmd *cobra.Command, args []string) error {
	transcript, err := loadTranscript(args[0])
	if err != nil {
		return err
	}

	sum := summary.Summarize(transcript)

	out, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
