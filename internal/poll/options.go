package poll

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

const (
	minOptions = 2
	maxOptions = 50
)

// ParseCustomOptions turns one-option-per-line text into options. Blank lines
// are dropped and names are trimmed.
func ParseCustomOptions(text string) []PollOption {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return OptionsFromNames(names)
}

// ValidateCustomOptions checks custom option text before a poll is started.
func ValidateCustomOptions(text string) error {
	options := ParseCustomOptions(text)

	if len(options) < minOptions {
		return ErrTooFewOptions
	}
	if len(options) > maxOptions {
		return ErrTooManyOptions
	}

	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		key := strings.ToLower(opt.Name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateOption, opt.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// OptionsFromNames assigns indexed ids to names, keeping their order.
func OptionsFromNames(names []string) []PollOption {
	options := make([]PollOption, 0, len(names))
	for i, name := range names {
		options = append(options, PollOption{ID: NewOptionID(i), Name: name})
	}
	return options
}

type PredefinedList struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
}

//go:embed lists.json
var listsJSON []byte

var (
	listsOnce sync.Once
	lists     []PredefinedList
	listsErr  error
)

// PredefinedLists returns the option lists shipped with the service.
func PredefinedLists() ([]PredefinedList, error) {
	listsOnce.Do(func() {
		var data struct {
			Lists []PredefinedList `json:"lists"`
		}
		if err := json.Unmarshal(listsJSON, &data); err != nil {
			listsErr = fmt.Errorf("decode predefined lists: %w", err)
			return
		}
		lists = data.Lists
	})
	return lists, listsErr
}

func FindPredefinedList(id string) (PredefinedList, bool) {
	all, err := PredefinedLists()
	if err != nil {
		return PredefinedList{}, false
	}
	for _, l := range all {
		if l.ID == id {
			return l, true
		}
	}
	return PredefinedList{}, false
}
