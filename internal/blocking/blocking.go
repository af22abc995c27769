// Package blocking builds and applies the focus-mode network-blocking rule
// set. Rules use the declarative URL-filter form "||site^", which matches the
// site and every sub-domain, with one rule per tracked site.
package blocking

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/store"
)

// DefaultRedirectURL is the extension-internal focus page.
const DefaultRedirectURL = "focus.html"

// Policy selects how blocked navigations are handled.
type Policy struct {
	Action      models.BlockAction
	RedirectURL string
}

// DefaultPolicy redirects blocked navigations to the focus page.
func DefaultPolicy() Policy {
	return Policy{Action: models.BlockActionRedirect, RedirectURL: DefaultRedirectURL}
}

// ParsePolicy validates an action name from configuration.
func ParsePolicy(action, redirectURL string) (Policy, error) {
	switch models.BlockAction(action) {
	case models.BlockActionBlock:
		return Policy{Action: models.BlockActionBlock}, nil
	case models.BlockActionRedirect, "":
		if redirectURL == "" {
			redirectURL = DefaultRedirectURL
		}
		return Policy{Action: models.BlockActionRedirect, RedirectURL: redirectURL}, nil
	default:
		return Policy{}, fmt.Errorf("unknown block action %q (use: block, redirect)", action)
	}
}

// RulesFor returns one main-frame rule per site with ids 1..N.
func RulesFor(sites []string, p Policy) []models.BlockRule {
	rules := make([]models.BlockRule, 0, len(sites))
	for i, site := range sites {
		r := models.BlockRule{
			ID:            i + 1,
			Priority:      1,
			Site:          site,
			Action:        p.Action,
			URLFilter:     "||" + site + "^",
			ResourceTypes: []string{"main_frame"},
		}
		if p.Action == models.BlockActionRedirect {
			r.RedirectURL = p.RedirectURL
		}
		rules = append(rules, r)
	}
	return rules
}

// IDs returns the ids of rules.
func IDs(rules []models.BlockRule) []int {
	ids := make([]int, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids
}

// Engine applies dynamic rule updates. Update removes first, then adds, and
// is atomic from the caller's point of view.
type Engine interface {
	Rules(ctx context.Context) ([]models.BlockRule, error)
	Update(ctx context.Context, removeIDs []int, add []models.BlockRule) error
}

// StoreEngine keeps the rule set in the persistent store, where the
// extension shim pulls it from. OnChange, when set, is called with the new
// rule set after every successful update.
type StoreEngine struct {
	store    store.Store
	OnChange func(rules []models.BlockRule)
}

// NewStoreEngine creates a StoreEngine over s.
func NewStoreEngine(s store.Store) *StoreEngine {
	return &StoreEngine{store: s}
}

func (e *StoreEngine) Rules(ctx context.Context) ([]models.BlockRule, error) {
	return e.store.ListBlockRules(ctx)
}

func (e *StoreEngine) Update(ctx context.Context, removeIDs []int, add []models.BlockRule) error {
	if err := e.store.UpdateBlockRules(ctx, removeIDs, add); err != nil {
		return err
	}
	if e.OnChange != nil {
		rules, err := e.store.ListBlockRules(ctx)
		if err != nil {
			return err
		}
		e.OnChange(rules)
	}
	return nil
}

// MemoryEngine is an in-process Engine.
type MemoryEngine struct {
	mu    sync.Mutex
	rules map[int]models.BlockRule
}

// NewMemoryEngine returns an empty MemoryEngine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{rules: make(map[int]models.BlockRule)}
}

func (e *MemoryEngine) Rules(_ context.Context) ([]models.BlockRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.BlockRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (e *MemoryEngine) Update(_ context.Context, removeIDs []int, add []models.BlockRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range removeIDs {
		delete(e.rules, id)
	}
	for _, r := range add {
		e.rules[r.ID] = r
	}
	return nil
}
