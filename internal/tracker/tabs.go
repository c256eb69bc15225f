// Package tracker turns the browser's active-tab state into recorded
// sessions and sweeps expired sessions out of the ledger.
package tracker

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// Tab is the browser's view of one tab.
type Tab struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// TabSource reports the tab that currently has the user's attention: the
// active tab of a focused window whose document is visible. ok is false
// when there is no such tab.
type TabSource interface {
	ActiveTab(ctx context.Context) (tab Tab, ok bool, err error)
}

// TabState is a TabSource fed by pushed browser updates.
type TabState struct {
	mu      sync.RWMutex
	tab     Tab
	hasTab  bool
	focused bool
	visible bool
}

// NewTabState returns an empty TabState; no tab is active until Update.
func NewTabState() *TabState {
	return &TabState{}
}

// Update replaces the active tab and its focus/visibility.
func (s *TabState) Update(tab Tab, focused, visible bool) {
	s.mu.Lock()
	s.tab = tab
	s.hasTab = true
	s.focused = focused
	s.visible = visible
	s.mu.Unlock()
}

// SetFocused records whether any browser window has OS focus.
func (s *TabState) SetFocused(focused bool) {
	s.mu.Lock()
	s.focused = focused
	s.mu.Unlock()
}

// Remove forgets the active tab if it is tabID.
func (s *TabState) Remove(tabID int) {
	s.mu.Lock()
	if s.hasTab && s.tab.ID == tabID {
		s.tab = Tab{}
		s.hasTab = false
	}
	s.mu.Unlock()
}

// Clear forgets all state, e.g. when the extension disconnects.
func (s *TabState) Clear() {
	s.mu.Lock()
	s.tab = Tab{}
	s.hasTab = false
	s.focused = false
	s.visible = false
	s.mu.Unlock()
}

// ActiveTab implements TabSource.
func (s *TabState) ActiveTab(ctx context.Context) (Tab, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasTab || !s.focused || !s.visible {
		return Tab{}, false, nil
	}
	return s.tab, true, nil
}

// Excluder decides whether a host must never be tracked.
type Excluder interface {
	IsExcluded(host string) bool
}

// Filter decides which URLs accumulate time.
type Filter struct {
	schemes  map[string]struct{}
	excluder Excluder
}

// NewFilter builds a Filter rejecting untrackedSchemes and, when ex is not
// nil, hosts it excludes.
func NewFilter(untrackedSchemes []string, ex Excluder) *Filter {
	f := &Filter{schemes: make(map[string]struct{}, len(untrackedSchemes)), excluder: ex}
	for _, s := range untrackedSchemes {
		f.schemes[strings.ToLower(strings.TrimSuffix(s, ":"))] = struct{}{}
	}
	return f
}

// Trackable reports whether time on rawURL should be accumulated.
// Unparseable URLs are not trackable.
func (f *Filter) Trackable(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return false
	}
	if _, internal := f.schemes[scheme]; internal {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	if f.excluder != nil && f.excluder.IsExcluded(host) {
		return false
	}
	return true
}
