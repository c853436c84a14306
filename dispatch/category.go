package dispatch

import (
	"fmt"
	"github.com/saylorsolutions/pvdispatch/structures/set"
	"strings"
)

// Category is a fixed label that classifies an asynchronous notification.
// Each Category known to a [Dispatcher] gets its own [Worker].
type Category string

const (
	CategoryMetadata Category = "metadata" // CategoryMetadata is used for connection state and access rights changes.
	CategoryMonitor  Category = "monitor"  // CategoryMonitor is used for value and monitor updates.
	CategoryGetPut   Category = "get_put"  // CategoryGetPut is used for put completion acknowledgements.
	CategoryUtility  Category = "utility"  // CategoryUtility is used for tasks scheduled with [Dispatcher.ScheduleUtilityTask].
)

// DefaultCategories returns the categories a [Dispatcher] supports when none are configured.
func DefaultCategories() []Category {
	return []Category{CategoryMetadata, CategoryMonitor, CategoryGetPut, CategoryUtility}
}

func (c Category) String() string {
	return string(c)
}

// ParseCategories converts category names into a validated slice of [Category].
func ParseCategories(names ...string) ([]Category, error) {
	cats := make([]Category, len(names))
	for i, name := range names {
		cats[i] = Category(strings.TrimSpace(name))
	}
	if err := validateCategories(cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func validateCategories(cats []Category) error {
	if len(cats) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidConfig)
	}
	seen := set.New[Category]()
	for _, cat := range cats {
		if len(cat) == 0 {
			return fmt.Errorf("%w: empty category name", ErrInvalidConfig)
		}
		if !seen.Add(cat) {
			return fmt.Errorf("%w: duplicate category '%s'", ErrInvalidConfig, cat)
		}
	}
	return nil
}

// State is the lifecycle state of a [Dispatcher].
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
