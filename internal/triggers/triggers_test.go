package triggers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medibox/internal/notify"
	"github.com/roach88/medibox/internal/router"
	"github.com/roach88/medibox/internal/store"
	"github.com/roach88/medibox/internal/testutil"
)

const compartment = "User/alice/Medicine-Box/Compartment-Details/box1/compartmentDetailsMap/2"

func start(t *testing.T, failures map[string]notify.Code) (*store.Store, *router.Router, *testutil.RecordingTransport) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "triggers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Set(ctx, "Pharmacy/pharmA", map[string]any{
		"registrationToken": "pharmA-token",
		"Pharmacy-Details":  map[string]any{"name": "pharmA", "phone": "555-0100"},
		"Pharmacy-Medicine-Details": map[string]any{
			"m1": map[string]any{"medicineName": "Panadol", "price": 4.5, "id": "med-1"},
		},
	}))
	require.NoError(t, s.Set(ctx, "User/alice/registrationToken", map[string]any{
		"alice-phone": true, "alice-old": true,
	}))

	tr := testutil.NewRecordingTransport(failures)
	r := router.New(s, router.WithEventIDs(testutil.NewFixedEventIDGenerator("")))
	require.NoError(t, Register(r, Deps{Store: s, Transport: tr}))
	assert.Equal(t, []string{RouteEnrichMedicine, RouteRunOutAlert, RouteOrderLifecycle}, r.Routes())

	runCtx, cancel := context.WithCancel(ctx)
	done, err := r.Start(runCtx)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, r, tr
}

func TestRegister_RequiresDeps(t *testing.T) {
	r := router.New(nil)
	assert.Error(t, Register(r, Deps{}))
}

func TestTriggers_EnrichmentAndAlert(t *testing.T) {
	ctx := context.Background()
	s, r, tr := start(t, map[string]notify.Code{"alice-old": notify.CodeInvalidToken})

	require.NoError(t, s.Set(ctx, compartment, map[string]any{
		"id":              2.0,
		"medicineBoxId":   "box1",
		"runOutAlert":     false,
		"medicineDetails": map[string]any{"medicineName": "Panadol", "drugstore": "pharmA"},
	}))
	require.NoError(t, r.WaitIdle(ctx))

	price, err := s.Get(ctx, compartment+"/medicineDetails/price")
	require.NoError(t, err)
	assert.Equal(t, 4.5, price)
	phone, err := s.Get(ctx, compartment+"/medicineDetails/pharmacyDetails/phone")
	require.NoError(t, err)
	assert.Equal(t, "555-0100", phone)
	assert.Empty(t, tr.Deliveries(), "enrichment alone alerts nobody")

	require.NoError(t, s.Set(ctx, compartment+"/runOutAlert", true))
	require.NoError(t, s.Set(ctx, compartment+"/runOutAlert", true))
	require.NoError(t, r.WaitIdle(ctx))

	alerts := tr.Delivered(notify.ActionMedicineRunOut)
	require.Len(t, alerts, 1)
	assert.Equal(t, "alice-phone", alerts[0].Target)
	assert.Equal(t, "Panadol", alerts[0].Message.Data["medicineName"])

	tokens, err := s.Get(ctx, "User/alice/registrationToken")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"alice-phone": true}, tokens, "only the invalid token is pruned")
}

func TestTriggers_OrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s, r, tr := start(t, nil)

	require.NoError(t, s.Set(ctx, "Medicine-Order/Active/o1", map[string]any{
		"id":                   "o1",
		"userName":             "alice",
		"targetSinglePharmacy": true,
		"medicineDetails":      map[string]any{"drugstore": "pharmA", "medicineName": "Panadol"},
	}))
	require.NoError(t, r.WaitIdle(ctx))

	specialized := tr.Delivered(notify.ActionNewSpecializedOrder)
	require.Len(t, specialized, 1)
	assert.Equal(t, "pharmA-token", specialized[0].Target)
	assert.Equal(t, "alice", specialized[0].Message.Data[notify.KeySender])

	ok, err := s.Merge(ctx, "Medicine-Order/Active/o1", map[string]any{"pharmacyDetails/name": "pharmA"})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, r.WaitIdle(ctx))

	active, err := s.Exists(ctx, "Medicine-Order/Active/o1")
	require.NoError(t, err)
	assert.False(t, active)
	queued, err := s.Exists(ctx, "Pharmacy/pharmA/Order-Queue/o1")
	require.NoError(t, err)
	assert.True(t, queued)

	accepted := tr.Delivered(notify.ActionMedicineOrderAccepted)
	assert.Len(t, accepted, 2, "one per alice device")
	assert.Len(t, tr.Delivered(notify.ActionNewSpecializedOrder), 2)
}
