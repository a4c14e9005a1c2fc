package farm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCatalog []Agent

func (c staticCatalog) Available(context.Context) ([]Agent, error) {
	return c, nil
}

func testCatalog() staticCatalog {
	return staticCatalog{
		{Name: "Google Chrome", ID: "chrome", Version: 25, OSID: "win", OSName: "Windows", OSVersion: "7", Platform: DesktopPlatform},
		{Name: "Google Chrome", ID: "chrome", Version: 26, OSID: "win", OSName: "Windows", OSVersion: "7", Platform: DesktopPlatform},
		{Name: "Mozilla Firefox", ID: "firefox", Version: 19, OSID: "mac", OSName: "Mac OS X", OSVersion: "10.8", Platform: DesktopPlatform},
		{Name: "Safari", ID: "Mobile Safari", Version: 0, OSID: "ios", OSName: "iOS", OSVersion: "6.0", Platform: "iPhone 5"},
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	catalog := testCatalog()

	for i := 0; i < 3; i++ {
		agent, err := Resolve(context.Background(), catalog, ParseSpec("chrome"))
		require.NoError(t, err)
		assert.Equal(t, 25, agent.Version)
	}
}

func TestResolve_PartialSpecs(t *testing.T) {
	catalog := testCatalog()

	tests := []struct {
		name    string
		spec    Spec
		version int
		id      string
	}{
		{"version", Spec{ID: "chrome"}.WithVersion(26), 26, "chrome"},
		{"os only", Spec{OSID: "mac"}, 19, "firefox"},
		{"platform", Spec{Platform: "iPhone 5"}, 0, "Mobile Safari"},
		{"zero version", Spec{OSID: "ios"}.WithVersion(0), 0, "Mobile Safari"},
		{"empty spec", Spec{}, 25, "chrome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, err := Resolve(context.Background(), catalog, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.id, agent.ID)
			assert.Equal(t, tt.version, agent.Version)
		})
	}
}

func TestResolve_Unresolved(t *testing.T) {
	spec := Spec{ID: "firefox"}.WithVersion(99)

	_, err := Resolve(context.Background(), testCatalog(), spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvedAgent)

	var unresolved *UnresolvedAgentError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, spec, unresolved.Spec)
	assert.Contains(t, err.Error(), `{"id":"firefox","version":99}`)
}

func TestResolve_CatalogError(t *testing.T) {
	wantErr := &VendorAPIError{Vendor: "browserstack", Op: "browsers", Message: "down"}
	source := NewCatalog(func(context.Context) ([]Agent, error) { return nil, wantErr })

	_, err := Resolve(context.Background(), catalogSource{source}, ParseSpec("chrome"))
	assert.ErrorIs(t, err, ErrVendorAPI)
}

type catalogSource struct{ *Catalog }

func (c catalogSource) Available(ctx context.Context) ([]Agent, error) {
	return c.Get(ctx)
}

func TestCatalog_FetchesOnce(t *testing.T) {
	var calls atomic.Int32
	catalog := NewCatalog(func(context.Context) ([]Agent, error) {
		calls.Add(1)
		return testCatalog(), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agents, err := catalog.Get(context.Background())
			assert.NoError(t, err)
			assert.Len(t, agents, 4)
		}()
	}
	wg.Wait()

	first, _ := catalog.Get(context.Background())
	second, _ := catalog.Get(context.Background())
	assert.Equal(t, int32(1), calls.Load())
	assert.Same(t, &first[0], &second[0])

	catalog.Reset()
	_, err := catalog.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCatalog_ErrorsAreNotCached(t *testing.T) {
	calls := 0
	catalog := NewCatalog(func(context.Context) ([]Agent, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return testCatalog(), nil
	})

	_, err := catalog.Get(context.Background())
	require.Error(t, err)

	agents, err := catalog.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, agents, 4)
	assert.Equal(t, 2, calls)
}

func TestAgent_SameAsIgnoresFarmParams(t *testing.T) {
	a := Agent{ID: "chrome", Version: 25, OSID: "win", OSVersion: "7", Farm: map[string]string{"browser": "chrome"}}
	b := Agent{ID: "chrome", Version: 25, OSID: "win", OSVersion: "7", Farm: map[string]string{"browserName": "chrome"}, Name: "Chrome"}
	c := Agent{ID: "chrome", Version: 26, OSID: "win", OSVersion: "7"}

	assert.True(t, a.SameAs(b))
	assert.False(t, a.SameAs(c))
}

func TestResultHelpers(t *testing.T) {
	results := []Result{
		{Spec: ParseSpec("chrome"), Worker: &Worker{SessionID: "1"}},
		{Spec: ParseSpec("opera"), Err: &UnresolvedAgentError{Spec: ParseSpec("opera")}},
	}

	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "opera", failed[0].Spec.ID)
	assert.True(t, results[0].OK())
}
