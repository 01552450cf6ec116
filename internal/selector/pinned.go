package selector

import (
	"encoding/json"
	"os"
)

// majorsState is the persisted pinned-majors configuration. Held coins
// are never stored here; they are re-derived from the live account every
// cycle.
type majorsState struct {
	MajorCoins []string `json:"major_coins"`
	Note       string   `json:"note,omitempty"`
}

func defaultMajors() []string {
	return []string{"KRW-BTC", "KRW-ETH", "KRW-XRP", "KRW-ADA", "KRW-SOL"}
}

// LoadMajors reads the pinned major-coin list from a JSON file, creating
// it with defaults on first use. An unreadable file falls back to the
// defaults without failing.
func LoadMajors(filePath string) []string {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			majors := defaultMajors()
			SaveMajors(filePath, majors)
			return majors
		}
		return defaultMajors()
	}
	var state majorsState
	if err := json.Unmarshal(data, &state); err != nil || len(state.MajorCoins) == 0 {
		return defaultMajors()
	}
	return state.MajorCoins
}

// SaveMajors writes the pinned major-coin list to a JSON file.
func SaveMajors(filePath string, majors []string) error {
	state := majorsState{
		MajorCoins: majors,
		Note:       "held coins are added dynamically at runtime",
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
