package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MikeSquared-Agency/checkcall/internal/dialog"
)

// loadTranscript reads a transcript file: a JSON array of messages.
func loadTranscript(path string) ([]dialog.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var transcript []dialog.Message
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return transcript, nil
}
