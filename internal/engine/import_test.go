package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftrule/internal/browser"
	"github.com/roach88/shiftrule/internal/compiler"
	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/store"
	"github.com/roach88/shiftrule/internal/testutil"
)

func testBundle() *compiler.Bundle {
	return &compiler.Bundle{
		Apps:    []ir.AppIdentifier{ir.Bundle("com.example.Game"), ir.ExecutablePath("/usr/bin/tool")},
		Domains: []string{"example.com"},
		Subdomains: []compiler.SubdomainRule{
			{Host: "docs.example.com", Rule: ir.SubdomainEnabled},
			{Host: "ads.other.org", Rule: ir.SubdomainDisabled},
		},
	}
}

func TestImport_AppliesEveryRule(t *testing.T) {
	s := setupTestStore(t)
	rules := store.NewRuleStore(s, nil)
	ctx := context.Background()

	result, err := Import(ctx, rules, testBundle(), WithSessionGenerator(NewFixedGenerator("import-1")))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Applied)
	assert.Equal(t, 0, result.Unchanged)
	assert.Equal(t, []ir.EventKind{
		ir.EventDisableActivated,
		ir.EventDisableActivated,
		ir.EventDisableActivated,
		ir.EventEnableActivated,
		ir.EventDisableActivated,
	}, kindsOf(result.Events))

	assert.True(t, rules.AppDisabled(ir.Bundle("com.example.Game")))
	assert.True(t, rules.AppDisabled(ir.ExecutablePath("/usr/bin/tool")))
	assert.Equal(t, ir.NewBrowserRuleSet(
		ir.NewBrowserRule(ir.RuleDomain, "example.com"),
		ir.NewBrowserRule(ir.RuleSubdomainEnabled, "docs.example.com"),
		ir.NewBrowserRule(ir.RuleSubdomainDisabled, "ads.other.org"),
	), rules.BrowserRules())

	// Persisted: a fresh store sees the same rules.
	reloaded := store.NewRuleStore(s, nil)
	reloaded.Load(ctx)
	assert.Equal(t, rules.BrowserRules(), reloaded.BrowserRules())
	assert.Equal(t, rules.AppRules(), reloaded.AppRules())
}

func TestImport_Idempotent(t *testing.T) {
	rules := store.NewRuleStore(setupTestStore(t), nil)
	ctx := context.Background()

	_, err := Import(ctx, rules, testBundle())
	require.NoError(t, err)

	result, err := Import(ctx, rules, testBundle())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 5, result.Unchanged)
	assert.Empty(t, result.Events)
}

func TestImport_OverrideFlipsExistingRow(t *testing.T) {
	rules := store.NewRuleStore(setupTestStore(t), nil)
	ctx := context.Background()

	_, err := rules.InsertBrowserRule(ctx, ir.NewBrowserRule(ir.RuleSubdomainDisabled, "docs.example.com"))
	require.NoError(t, err)

	b := &compiler.Bundle{
		Domains:    []string{"example.com"},
		Subdomains: []compiler.SubdomainRule{{Host: "docs.example.com", Rule: ir.SubdomainEnabled}},
	}
	_, err = Import(ctx, rules, b)
	require.NoError(t, err)

	assert.Equal(t, []ir.BrowserRule{
		ir.NewBrowserRule(ir.RuleSubdomainEnabled, "docs.example.com"),
	}, rules.BrowserRules().ForHost("docs.example.com"))
}

func TestImport_DomainMatchesVisitedHost(t *testing.T) {
	rules := store.NewRuleStore(setupTestStore(t), nil)
	ctx := context.Background()

	b := &compiler.Bundle{Domains: []string{"www.example.com"}}
	result, err := Import(ctx, rules, b)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, ir.NewBrowserRuleSet(ir.NewBrowserRule(ir.RuleDomain, "example.com")), rules.BrowserRules())

	apps := testutil.NewFakeApps()
	apps.SetBundle("com.apple.Safari")
	watcher := browser.NewWatcher(apps, nil)
	watcher.UpdateForSupportedBrowser()
	e := New(rules, apps, watcher, nil)

	for _, url := range []string{"https://www.example.com/", "https://example.com/", "https://docs.example.com/"} {
		require.NoError(t, watcher.SetActiveURL(url))
		assert.True(t, e.DisabledForDomain(), url)
		assert.True(t, e.DisableRuleIsActive(), url)
	}

	// Same rule as "domain disable" on the host's URL.
	again, err := Import(ctx, rules, &compiler.Bundle{Domains: []string{"example.com"}})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Unchanged)
}

func TestImport_RecordsEvents(t *testing.T) {
	s := setupTestStore(t)
	rules := store.NewRuleStore(s, nil)
	ctx := context.Background()

	b := &compiler.Bundle{Domains: []string{"example.com"}}
	_, err := Import(ctx, rules, b, WithRecorder(s), WithSessionGenerator(NewFixedGenerator("import-1")))
	require.NoError(t, err)

	events, err := s.ReadEvents(ctx, "import-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.ScopeDomain, events[0].Scope)
	assert.Equal(t, "example.com", events[0].Subject)
}

func TestImport_FailedWrite(t *testing.T) {
	blobs := &toggleBlobs{Store: setupTestStore(t), fail: true}
	rules := store.NewRuleStore(blobs, nil)

	result, err := Import(context.Background(), rules, testBundle())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "com.example.Game")
	assert.Equal(t, 0, result.Applied)
}

func kindsOf(events []ir.Event) []ir.EventKind {
	kinds := make([]ir.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}
