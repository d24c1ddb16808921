package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the checkctl command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkctl",
		Short: "Offline tooling for driver check-in call transcripts",
		Long: `checkctl runs the check-in call logic against transcript files without a
running service: compute the agent's next utterance for a conversation, or
distill a finished transcript into its structured summary.

Transcript files are JSON arrays of {"role": ..., "text": ...} messages.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewSummarizeCmd())
	cmd.AddCommand(NewReplyCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
