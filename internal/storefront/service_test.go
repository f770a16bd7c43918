package storefront

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/cart-drawer/internal/domain"
)

// countingStore wraps a MemoryStore, counting loads and optionally blocking
// them until release is closed.
type countingStore struct {
	*MemoryStore
	loads   atomic.Int32
	release chan struct{}
	loadErr error
}

func (s *countingStore) Load(ctx context.Context, token string) (*Cart, error) {
	s.loads.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.MemoryStore.Load(ctx, token)
}

func setupService(t *testing.T) (*Service, *countingStore) {
	t.Helper()
	mem := NewMemoryStore(time.Hour)
	t.Cleanup(func() { mem.Close() })
	store := &countingStore{MemoryStore: mem}
	return NewService(store, DefaultCatalog(), nil), store
}

func TestService_CartUnknownTokenIsEmpty(t *testing.T) {
	svc, store := setupService(t)

	cart, err := svc.Cart(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", cart.Token)
	assert.Empty(t, cart.Lines)

	_, err = store.MemoryStore.Load(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrCartNotFound, "reading must not persist a cart")
}

func TestService_CartRequiresToken(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.Cart(context.Background(), "")
	require.Error(t, err)
}

func TestService_CartCollapsesConcurrentLoads(t *testing.T) {
	svc, store := setupService(t)
	store.release = make(chan struct{})

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Cart(context.Background(), "tok")
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Less(t, store.loads.Load(), int32(callers))
}

func TestService_CartLoadError(t *testing.T) {
	svc, store := setupService(t)
	store.loadErr = errors.New("connection refused")

	_, err := svc.Cart(context.Background(), "tok")
	require.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, ErrCartNotFound)
}

func TestService_AddMergesAndClamps(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	cart, err := svc.Add(ctx, "tok", []domain.AddItem{{ID: "1002", Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)

	cart, err = svc.Add(ctx, "tok", []domain.AddItem{{ID: "1002", Quantity: 5}})
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1, "same variant and plan merges")
	assert.Equal(t, 3, cart.Lines[0].Quantity, "clamped to stock")

	cart, err = svc.Add(ctx, "tok", []domain.AddItem{{ID: "1001", Quantity: 1, SellingPlan: "monthly"}})
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 2)
	assert.Equal(t, "monthly", cart.Lines[1].SellingPlan)
}

func TestService_AddSoldOut(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "tok", []domain.AddItem{{ID: "1001", Quantity: 1}})
	require.NoError(t, err)

	_, err = svc.Add(ctx, "tok", []domain.AddItem{{ID: "1003", Quantity: 1}, {ID: "1004", Quantity: 1}})
	require.ErrorIs(t, err, ErrSoldOut)
	assert.Equal(t, "The product 'Fig Hand Cream' is already sold out.", err.Error())

	cart, err := svc.Cart(ctx, "tok")
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1, "a rejected add changes nothing")
}

func TestService_AddUnknownVariant(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.Add(context.Background(), "tok", []domain.AddItem{{ID: "9999", Quantity: 1}})
	assert.ErrorIs(t, err, ErrUnknownVariant)
	_, err = svc.Add(context.Background(), "tok", []domain.AddItem{{ID: "abc", Quantity: 1}})
	assert.ErrorIs(t, err, ErrUnknownVariant)
	_, err = svc.Add(context.Background(), "tok", nil)
	assert.ErrorIs(t, err, ErrEmptyMutation)
}

func TestService_AddSampleIsTagged(t *testing.T) {
	svc, _ := setupService(t)
	cart, err := svc.Add(context.Background(), "tok", []domain.AddItem{{ID: "2001", Quantity: 1}})
	require.NoError(t, err)
	snapshot := cart.Snapshot(svc.Catalog())
	require.Len(t, snapshot.Samples(), 1)
	assert.Equal(t, true, cart.Lines[0].Properties[domain.SampleProperty])
}

func TestService_Change(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	cart, err := svc.Add(ctx, "tok", []domain.AddItem{{ID: "1001", Quantity: 1}, {ID: "1002", Quantity: 1}})
	require.NoError(t, err)
	key := cart.Lines[1].Key

	cart, err = svc.Change(ctx, "tok", ChangeInput{Line: 1, Quantity: domain.Qty(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Lines[0].Quantity)

	cart, err = svc.Change(ctx, "tok", ChangeInput{ID: key, Quantity: domain.Qty(9)})
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Lines[1].Quantity, "clamped to stock")

	cart, err = svc.Change(ctx, "tok", ChangeInput{ID: "1001", Quantity: domain.Qty(0)})
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, key, cart.Lines[0].Key)
}

func TestService_ChangeSellingPlanOnly(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "tok", []domain.AddItem{{ID: "1001", Quantity: 2}})
	require.NoError(t, err)

	cart, err := svc.Change(ctx, "tok", ChangeInput{Line: 1, SellingPlan: "monthly"})
	require.NoError(t, err)
	assert.Equal(t, "monthly", cart.Lines[0].SellingPlan)
	assert.Equal(t, 2, cart.Lines[0].Quantity)

	cart, err = svc.Change(ctx, "tok", ChangeInput{Line: 1})
	require.NoError(t, err)
	assert.Empty(t, cart.Lines[0].SellingPlan, "no plan means one-time purchase")
}

func TestService_ChangeRejects(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "tok", []domain.AddItem{{ID: "1001", Quantity: 1}})
	require.NoError(t, err)

	_, err = svc.Change(ctx, "tok", ChangeInput{Line: 2, Quantity: domain.Qty(1)})
	assert.ErrorIs(t, err, ErrUnknownLine)
	_, err = svc.Change(ctx, "tok", ChangeInput{ID: "nope", Quantity: domain.Qty(1)})
	assert.ErrorIs(t, err, ErrUnknownLine)
	_, err = svc.Change(ctx, "tok", ChangeInput{Line: 1, Quantity: domain.Qty(-1)})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestService_UpdateRemovesSamples(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	cart, err := svc.Add(ctx, "tok", []domain.AddItem{
		{ID: "1002", Quantity: 1}, {ID: "2001", Quantity: 1}, {ID: "2002", Quantity: 1},
	})
	require.NoError(t, err)

	snap := cart.Snapshot(svc.Catalog())
	req := domain.RemoveSamples(snap.Samples())
	req.Updates["not-a-line"] = 0
	cart, err = svc.Update(ctx, "tok", req.Updates)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(1002), cart.Lines[0].VariantID)

	_, err = svc.Update(ctx, "tok", map[string]int{"1002": -2})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestService_Clear(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "tok", []domain.AddItem{{ID: "1001", Quantity: 1}})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "tok"))
	cart, err := svc.Cart(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
}

func TestService_CartReturnsCopies(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, "tok", []domain.AddItem{{ID: "1001", Quantity: 1}})
	require.NoError(t, err)

	a, err := svc.Cart(ctx, "tok")
	require.NoError(t, err)
	a.Lines[0].Quantity = 50

	b, err := svc.Cart(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Lines[0].Quantity)
}
