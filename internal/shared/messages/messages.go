package messages

import (
	"encoding/json"
	"fmt"
	"os"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Messages holds the push notification texts. Bodies may use {added},
// {modified}, {removed} and {changed}.
type Messages struct {
	SyncComplete   MessageText `json:"sync_complete"`
	RelinkRequired MessageText `json:"relink_required"`
}

// Default returns the built-in English texts.
func Default() *Messages {
	return &Messages{
		SyncComplete: MessageText{
			Title: "Transactions updated",
			Body:  "{changed} transactions changed since your last sync.",
		},
		RelinkRequired: MessageText{
			Title: "Reconnect your bank",
			Body:  "Your bank needs you to sign in again before we can sync.",
		},
	}
}

// Load reads texts from a JSON file. Texts missing from the file keep
// their defaults.
func Load(path string) (*Messages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	m := Default()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	return m, nil
}
