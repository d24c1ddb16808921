package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/checkcall/internal/dialog"
)

var (
	replyGreeting string
	replyTriggers []string
	replyDriver   string
	replyLoad     string
	replyGPS      string
	replyJSON     bool
)

// NewReplyCmd creates the reply command.
func NewReplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reply <transcript.json>",
		Short: "Compute the agent's next utterance for a transcript",
		Long: `Reply evaluates the conversation rules against a transcript file and
prints the agent's next utterance. Conversation state is recovered from the
transcript itself, so the same file always yields the same reply.

Examples:
  checkctl reply call.json --driver Alex --load L-100
  checkctl reply call.json --gps "Tucson, AZ" --json`,
		Args: cobra.ExactArgs(1),
		RunE: runReply,
	}

	cmd.Flags().StringVar(&replyGreeting, "greeting", "Hi {driver_name}, this is dispatch with a check call on load {load_number}. Can you give me an update on your status?", "Greeting template for the opening turn")
	cmd.Flags().StringSliceVar(&replyTriggers, "triggers", []string{"accident", "emergency", "blowout", "breakdown", "medical"}, "Emergency trigger phrases")
	cmd.Flags().StringVar(&replyDriver, "driver", "", "Driver name")
	cmd.Flags().StringVar(&replyLoad, "load", "", "Load number")
	cmd.Flags().StringVar(&replyGPS, "gps", "", "Expected GPS location for conflict checks")
	cmd.Flags().BoolVar(&replyJSON, "json", false, "Print the full decision as JSON")

	return cmd
}

func runReply(cmd *cobra.Command, args []string) error {
	transcript, err := loadTranscript(args[0])
	if err != nil {
		return err
	}

	cfg := dialog.Config{
		GreetingTemplate:        replyGreeting,
		EmergencyTriggerPhrases: replyTriggers,
	}
	ctx := dialog.Context{
		DriverName:  replyDriver,
		LoadNumber:  replyLoad,
		GPSLocation: replyGPS,
	}

	engine := dialog.NewEngine()
	decision, err := engine.Next(transcript, cfg, ctx, dialog.StateFromTranscript(transcript))
	if err != nil {
		return err
	}

	if replyJSON {
		out, err := json.MarshalIndent(map[string]any{
			"reply": decision.Reply,
			"state": decision.State,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode decision: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), decision.Reply)
	return nil
}
