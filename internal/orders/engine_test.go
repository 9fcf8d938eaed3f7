package orders

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/router"
	"github.com/roach88/medibox/internal/store"
)

type sent struct {
	to     string
	action notify.Action
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
	fail error
}

func (r *recordingNotifier) Notify(ctx context.Context, to notify.Recipient, msg notify.Message) (notify.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{to: to.String(), action: msg.Action()})
	return notify.Report{Resolved: 1, Delivered: 1}, r.fail
}

func (r *recordingNotifier) Broadcast(ctx context.Context, topic string, msg notify.Message) (notify.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{to: "topic:" + topic, action: msg.Action()})
	return notify.Report{Delivered: 1}, r.fail
}

func (r *recordingNotifier) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sent...)
}

type fixture struct {
	store    *store.Store
	router   *router.Router
	notifier *recordingNotifier
}

// newFixture wires the engine to a store through a running router.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	n := &recordingNotifier{}
	r := router.New(s, router.WithEventIDs(router.NewSequenceGenerator("evt")))
	require.NoError(t, r.Handle("orders", "Medicine-Order/Active/{pushId}", New(s, n)))

	ctx, cancel := context.WithCancel(context.Background())
	done, err := r.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &fixture{store: s, router: r, notifier: n}
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	require.NoError(t, f.router.WaitIdle(context.Background()))
}

// buckets lists every bucket holding order id.
func (f *fixture) buckets(t *testing.T, id string) []string {
	t.Helper()
	ctx := context.Background()
	var found []string
	for _, p := range []string{
		"Medicine-Order/Active/" + id,
		"Medicine-Order/Inactive/" + id,
		"Pharmacy/pharmA/Order-Queue/" + id,
	} {
		ok, err := f.store.Exists(ctx, p)
		require.NoError(t, err)
		if ok {
			found = append(found, p)
		}
	}
	return found
}

func TestEngine_TargetedOrderScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Set(ctx, "Medicine-Order/Active/o1", map[string]any{
		"id":                   "o1",
		"userName":             "alice",
		"targetSinglePharmacy": true,
		"medicineDetails":      map[string]any{"drugstore": "pharmA"},
	}))
	f.settle(t)

	assert.Equal(t, []sent{{"Pharmacy/pharmA", notify.ActionNewSpecializedOrder}}, f.notifier.all())
	assert.Equal(t, []string{"Medicine-Order/Active/o1"}, f.buckets(t, "o1"), "creation never moves the order")

	ok, err := f.store.Merge(ctx, "Medicine-Order/Active/o1", map[string]any{"pharmacyDetails/name": "pharmA"})
	require.NoError(t, err)
	require.True(t, ok)
	f.settle(t)

	assert.Equal(t, []string{"Pharmacy/pharmA/Order-Queue/o1"}, f.buckets(t, "o1"))
	assert.Equal(t, []sent{
		{"Pharmacy/pharmA", notify.ActionNewSpecializedOrder},
		{"User/alice", notify.ActionMedicineOrderAccepted},
		{"Pharmacy/pharmA", notify.ActionNewSpecializedOrder},
	}, f.notifier.all())

	queued, err := f.store.Get(ctx, "Pharmacy/pharmA/Order-Queue/o1/userName")
	require.NoError(t, err)
	assert.Equal(t, "alice", queued, "the order is copied verbatim")
}

func TestEngine_BroadcastOrderScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Set(ctx, "Medicine-Order/Active/o2", map[string]any{
		"id":                   "o2",
		"userName":             "bob",
		"targetSinglePharmacy": false,
		"medicineDetails":      map[string]any{"drugstore": "pharmA"},
	}))
	f.settle(t)

	assert.Equal(t, []sent{{"topic:medicineOrder", notify.ActionNewMedicineOrder}}, f.notifier.all())

	// Unrelated updates do not move the order.
	require.NoError(t, f.store.Set(ctx, "Medicine-Order/Active/o2/note", "call first"))
	f.settle(t)
	assert.Equal(t, []string{"Medicine-Order/Active/o2"}, f.buckets(t, "o2"))

	require.NoError(t, f.store.Set(ctx, "Medicine-Order/Active/o2/availability", false))
	f.settle(t)

	assert.Equal(t, []string{"Medicine-Order/Inactive/o2"}, f.buckets(t, "o2"))
	assert.Equal(t, []sent{
		{"topic:medicineOrder", notify.ActionNewMedicineOrder},
		{"User/bob", notify.ActionMedicineOrderAccepted},
	}, f.notifier.all())
}

func TestEngine_AcceptedOrderGoesToPharmacyQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Set(ctx, "Medicine-Order/Active/o3", map[string]any{
		"id":              "o3",
		"userName":        "carol",
		"medicineDetails": map[string]any{"drugstore": "pharmA"},
	}))
	require.NoError(t, f.store.Set(ctx, "Medicine-Order/Active/o3/availability", true))
	f.settle(t)

	assert.Equal(t, []string{"Pharmacy/pharmA/Order-Queue/o3"}, f.buckets(t, "o3"))
}

func TestEngine_AcceptedOrderGoesToAcceptingPharmacy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Set(ctx, "Medicine-Order/Active/o9", map[string]any{
		"id":              "o9",
		"userName":        "dave",
		"medicineDetails": map[string]any{"drugstore": "pharmA"},
	}))
	f.settle(t)

	ok, err := f.store.Merge(ctx, "Medicine-Order/Active/o9", map[string]any{
		"availability":    true,
		"pharmacyDetails": map[string]any{"name": "pharmB"},
	})
	require.NoError(t, err)
	require.True(t, ok)
	f.settle(t)

	inB, err := f.store.Exists(ctx, "Pharmacy/pharmB/Order-Queue/o9")
	require.NoError(t, err)
	assert.True(t, inB)
	assert.Empty(t, f.buckets(t, "o9"), "nothing left in Active, Inactive or the drugstore's queue")

	assert.Equal(t, []sent{
		{"topic:medicineOrder", notify.ActionNewMedicineOrder},
		{"User/dave", notify.ActionMedicineOrderAccepted},
		{"Pharmacy/pharmB", notify.ActionNewSpecializedOrder},
	}, f.notifier.all())
}

func TestEngine_RoutingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	defer s.Close()

	n := &recordingNotifier{}
	e := New(s, n)

	value := map[string]any{"id": "o1", "userName": "alice", "medicineDetails": map[string]any{"drugstore": "pharmA"}}
	require.NoError(t, s.Set(ctx, "Medicine-Order/Active/o1", value))

	tr := RouteToInactive{}
	applied, err := e.Apply(ctx, "Medicine-Order/Active/o1", "o1", tr)
	require.NoError(t, err)
	assert.True(t, applied)
	seq := s.LastSeq()

	// Re-firing the same transition finds nothing left in Active.
	applied, err = e.Apply(ctx, "Medicine-Order/Active/o1", "o1", tr)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, seq, s.LastSeq(), "no additional writes")
	assert.Len(t, n.all(), 1, "no duplicate notification")
}

func TestEngine_UsesPushIDWhenOrderHasNoID(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "Medicine-Order/Active/-Nabc", map[string]any{"userName": "alice"}))

	_, err = New(s, &recordingNotifier{}).Apply(ctx, "Medicine-Order/Active/-Nabc", "-Nabc", RouteToInactive{})
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "Medicine-Order/Inactive/-Nabc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_NotificationFailureStillRoutes(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	defer s.Close()

	n := &recordingNotifier{fail: errors.New("transport down")}
	require.NoError(t, s.Set(ctx, "Medicine-Order/Active/o1", map[string]any{"id": "o1", "userName": "alice"}))

	applied, err := New(s, n).Apply(ctx, "Medicine-Order/Active/o1", "o1", RouteToPharmacy{Pharmacy: "pharmA"})
	require.Error(t, err)
	assert.True(t, applied)
	assert.Len(t, n.all(), 2, "both parties are attempted")

	ok, err := s.Exists(ctx, "Pharmacy/pharmA/Order-Queue/o1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_CustomTopic(t *testing.T) {
	n := &recordingNotifier{}
	e := New(nil, n, WithTopic("orders-eu"))

	applied, err := e.Apply(context.Background(), "Medicine-Order/Active/o1", "o1", Created{})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []sent{{"topic:orders-eu", notify.ActionNewMedicineOrder}}, n.all())
}
