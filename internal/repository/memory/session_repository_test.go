package memory

import (
	"fmt"
	"sync"
	"testing"

	"inventory-assistant-be/pkg/acts"
	"inventory-assistant-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_StartReplacesPreviousWorkflow(t *testing.T) {
	r := NewSessionRepository()

	_, replaced := r.Start("u1", "c1", &store.UnfoundContext{Form: store.UnfoundForm{Serial: "SN1", Employee: "Ivanov"}}, "unfound_type")
	assert.Nil(t, replaced)

	started, replaced := r.Start("u1", "c1", &store.SearchContext{}, "search_wait_serial")
	require.NotNil(t, replaced)
	assert.Equal(t, store.WorkflowUnfound, replaced.Workflow())
	assert.Equal(t, store.WorkflowSearch, started.Workflow())

	got, ok := r.Get("u1")
	require.True(t, ok)
	_, isSearch := got.Context.(*store.SearchContext)
	assert.True(t, isSearch)
	assert.Equal(t, store.State("search_wait_serial"), got.State)
	assert.Equal(t, 1, r.Count())
}

func TestSessionRepository_GetReturnsCopy(t *testing.T) {
	r := NewSessionRepository()
	r.Start("u1", "c1", &store.TransferContext{Offered: []string{"A"}}, "s")

	got, _ := r.Get("u1")
	got.Context.(*store.TransferContext).Offered[0] = "mutated"
	got.State = "elsewhere"

	again, _ := r.Get("u1")
	assert.Equal(t, "A", again.Context.(*store.TransferContext).Offered[0])
	assert.Equal(t, store.State("s"), again.State)
}

func TestSessionRepository_Update(t *testing.T) {
	r := NewSessionRepository()

	_, err := r.Update("nobody", "x", nil)
	assert.ErrorIs(t, err, store.ErrNoSession)

	r.Start("u1", "c1", &store.SearchContext{}, "a")
	s, err := r.Update("u1", "b", func(s *store.Session) {
		s.Context.(*store.SearchContext).LastSerial = "PC0U"
	})
	require.NoError(t, err)
	assert.Equal(t, store.State("b"), s.State)
	assert.Equal(t, "PC0U", s.Context.(*store.SearchContext).LastSerial)
}

func TestSessionRepository_ParkAndClear(t *testing.T) {
	r := NewSessionRepository()
	r.Start("u1", "c1", &store.TransferContext{}, "confirm")

	batch := &acts.Batch{NewEmployee: "Sidorov", Acts: []acts.Act{{OldEmployee: "Ivanov", DocumentPath: "/tmp/a.html"}}}
	parked := r.Park("u1", "c1", &store.PendingInput{Kind: store.PendingActDelivery, Batch: batch})
	assert.False(t, parked.Active())
	require.NotNil(t, parked.Pending)

	_, err := r.Update("u1", "x", nil)
	assert.ErrorIs(t, err, store.ErrNoSession)

	s, err := r.SetPending("u1", &store.PendingInput{Kind: store.PendingActEmail, Batch: batch})
	require.NoError(t, err)
	assert.Equal(t, store.PendingActEmail, s.Pending.Kind)

	removed := r.Clear("u1")
	require.NotNil(t, removed)
	assert.Equal(t, []string{"/tmp/a.html"}, removed.Pending.Batch.Paths())
	_, ok := r.Get("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestSessionRepository_SetPendingNilOnParkedSessionRemovesIt(t *testing.T) {
	r := NewSessionRepository()
	r.Park("u1", "c1", &store.PendingInput{Kind: store.PendingActDelivery, Batch: &acts.Batch{}})

	s, err := r.SetPending("u1", nil)
	require.NoError(t, err)
	assert.Nil(t, s)
	_, ok := r.Get("u1")
	assert.False(t, ok)
}

func TestSessionRepository_ConcurrentUsers(t *testing.T) {
	r := NewSessionRepository()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			r.Start(user, user, &store.SearchContext{}, "a")
			for j := 0; j < 20; j++ {
				_, err := r.Update(user, "a", func(s *store.Session) {
					s.Context.(*store.SearchContext).LastSerial += "x"
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Count())
	s, _ := r.Get("u7")
	assert.Len(t, s.Context.(*store.SearchContext).LastSerial, 20)
}

func TestSessionRepository_StartKeepsPendingInput(t *testing.T) {
	r := NewSessionRepository()
	batch := &acts.Batch{Acts: []acts.Act{{OldEmployee: "Ivanov", DocumentPath: "/tmp/a.html"}}}
	r.Park("u1", "c1", &store.PendingInput{Kind: store.PendingActDelivery, Batch: batch})

	started, replaced := r.Start("u1", "c1", &store.SearchContext{}, "a")
	require.NotNil(t, replaced)
	assert.False(t, replaced.Active())
	require.NotNil(t, started.Pending)
	assert.Equal(t, []string{"/tmp/a.html"}, started.Pending.Batch.Paths())
}
