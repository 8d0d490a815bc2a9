package network

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownTab = errors.New("unknown tab")

type Tab int

const (
	TabConnections Tab = iota
	TabRequests
	TabSuggestions
	TabDiscover

	tabCount = 4
)

var tabNames = [tabCount]string{"connections", "requests", "suggestions", "discover"}

func (t Tab) Valid() bool {
	return t >= 0 && t < tabCount
}

func (t Tab) String() string {
	if !t.Valid() {
		return "tab(" + strconv.Itoa(int(t)) + ")"
	}
	return tabNames[t]
}

// Paged reports whether the tab's list is fetched page by page.
func (t Tab) Paged() bool {
	return t == TabSuggestions || t == TabDiscover
}

// ParseTab accepts a tab index ("0".."3") or name. "all" is an alias for discover.
func ParseTab(s string) (Tab, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if tab := Tab(n); tab.Valid() {
			return tab, nil
		}
		return 0, fmt.Errorf("%w: %d", ErrUnknownTab, n)
	}
	if s == "all" {
		return TabDiscover, nil
	}
	for i, name := range tabNames {
		if name == s {
			return Tab(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTab, s)
}

func Tabs() []Tab {
	return []Tab{TabConnections, TabRequests, TabSuggestions, TabDiscover}
}
