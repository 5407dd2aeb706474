package knowledge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/vouch/pkg/types"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFileStore_Knowledge(t *testing.T) {
	store := newTestStore(t)

	t.Run("unknown domain yields empty record", func(t *testing.T) {
		k, err := store.GetKnowledge("shop.example.com")
		require.NoError(t, err)
		assert.Equal(t, "shop.example.com", k.Domain)
		assert.Empty(t, k.Notes)
	})

	t.Run("round trip", func(t *testing.T) {
		err := store.SaveKnowledge(SiteKnowledge{
			Domain: "shop.example.com",
			Notes:  []string{"login form is on /account", "cart badge lags one click"},
		})
		require.NoError(t, err)

		k, err := store.GetKnowledge("shop.example.com")
		require.NoError(t, err)
		assert.Len(t, k.Notes, 2)
		assert.False(t, k.UpdatedAt.IsZero())
	})

	t.Run("hostile domain characters are flattened", func(t *testing.T) {
		err := store.SaveKnowledge(SiteKnowledge{Domain: "a/b:c", Notes: []string{"x"}})
		require.NoError(t, err)

		k, err := store.GetKnowledge("a/b:c")
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, k.Notes)
	})
}

func TestFileStore_History(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddHistory(HistoryEntry{
			Raw:     fmt.Sprintf("e: command %d", i),
			Mode:    "extract",
			Success: true,
		}))
	}

	recent, err := store.RecentHistory(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// Newest first.
	assert.Equal(t, "e: command 4", recent[0].Raw)
	assert.Equal(t, "e: command 2", recent[2].Raw)
	assert.NotEmpty(t, recent[0].ID)

	t.Run("empty store", func(t *testing.T) {
		empty := newTestStore(t)
		recent, err := empty.RecentHistory(10)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})
}

func TestFileStore_Learnings(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AddLearning(Learning{Domain: "x.test", Text: "modal traps focus"}))
	require.NoError(t, store.AddLearning(Learning{Domain: "x.test", Text: "search is debounced"}))
	// Appending twice must not clobber the first entry; verified indirectly
	// through the file round trip below.
	var learnings []Learning
	require.NoError(t, readJSON(store.root+"/learnings.json", &learnings))
	require.Len(t, learnings, 2)
	assert.NotEmpty(t, learnings[0].ID)
	assert.False(t, learnings[1].CreatedAt.IsZero())
}

func TestFileStore_TestReports(t *testing.T) {
	store := newTestStore(t)

	report := &types.TestReport{
		Title:   "checkout flow",
		Verdict: types.ReportPass,
		Results: []types.StepResult{
			{Step: types.TestStep{Action: "open /checkout"}, Verdict: types.StepPass},
		},
		RunAt: time.Now(),
	}

	id, err := store.SaveTestReport(report)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, report.ID)

	loaded, err := store.GetTestReport(id)
	require.NoError(t, err)
	assert.Equal(t, "checkout flow", loaded.Title)
	assert.Equal(t, types.ReportPass, loaded.Verdict)
	require.Len(t, loaded.Results, 1)

	_, err = store.GetTestReport("missing")
	assert.Error(t, err)
}

func TestFileStore_BillingCycle(t *testing.T) {
	store := newTestStore(t)

	cycle, err := store.LoadBillingCycle()
	require.NoError(t, err)
	assert.True(t, cycle.Start.IsZero())

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveBillingCycle(BillingCycle{Start: start, TotalUSD: 12.5}))

	cycle, err = store.LoadBillingCycle()
	require.NoError(t, err)
	assert.Equal(t, 12.5, cycle.TotalUSD)
	assert.True(t, cycle.Start.Equal(start))
}
