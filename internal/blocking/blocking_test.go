package blocking

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/sites"
	"github.com/joescharf/shamescroll/internal/store"
)

func TestRulesFor_OneRulePerSite(t *testing.T) {
	list := sites.Tracked()
	rules := RulesFor(list, DefaultPolicy())

	require.Len(t, rules, len(list))
	for i, r := range rules {
		assert.Equal(t, i+1, r.ID)
		assert.Equal(t, list[i], r.Site)
		assert.Equal(t, "||"+list[i]+"^", r.URLFilter)
		assert.Equal(t, models.BlockActionRedirect, r.Action)
		assert.Equal(t, DefaultRedirectURL, r.RedirectURL)
		assert.Equal(t, []string{"main_frame"}, r.ResourceTypes)
	}
}

func TestRulesFor_BlockHasNoRedirect(t *testing.T) {
	rules := RulesFor([]string{"reddit.com"}, Policy{Action: models.BlockActionBlock, RedirectURL: "ignored"})
	require.Len(t, rules, 1)
	assert.Empty(t, rules[0].RedirectURL)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("block", "")
	require.NoError(t, err)
	assert.Equal(t, models.BlockActionBlock, p.Action)

	p, err = ParsePolicy("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)

	p, err = ParsePolicy("redirect", "chrome-extension://abc/focus.html")
	require.NoError(t, err)
	assert.Equal(t, "chrome-extension://abc/focus.html", p.RedirectURL)

	_, err = ParsePolicy("nuke", "")
	assert.Error(t, err)
}

func TestMemoryEngine(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()

	rules := RulesFor([]string{"a.com", "b.com"}, DefaultPolicy())
	require.NoError(t, e.Update(ctx, nil, rules))

	got, err := e.Rules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, IDs(got))

	require.NoError(t, e.Update(ctx, IDs(got), nil))
	got, err = e.Rules(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreEngine_NotifiesOnChange(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	e := NewStoreEngine(s)
	var seen [][]models.BlockRule
	e.OnChange = func(rules []models.BlockRule) { seen = append(seen, rules) }

	require.NoError(t, e.Update(ctx, nil, RulesFor(sites.Tracked(), DefaultPolicy())))
	require.NoError(t, e.Update(ctx, []int{1, 2, 3, 4, 5, 6, 7}, nil))

	require.Len(t, seen, 2)
	assert.Len(t, seen[0], len(sites.Tracked()))
	assert.Empty(t, seen[1])
}
