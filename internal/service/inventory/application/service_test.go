package application

import (
	"context"
	"testing"

	"bazaar/internal/pkg/paging"
	"bazaar/internal/service/inventory/domain"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
)

// fakeStore 是内存版的台账+审计存储。
// fakeTxRunner 在 fn 失败时恢复快照，模拟数据库回滚语义。
type fakeStore struct {
	inv  map[int64]*domain.Inventory
	hist []*domain.History
}

func newFakeStore(stock map[int64]int) *fakeStore {
	s := &fakeStore{inv: make(map[int64]*domain.Inventory)}
	for id, qty := range stock {
		s.inv[id] = domain.NewInventory(id, qty)
	}
	return s
}

func (s *fakeStore) snapshot() (map[int64]*domain.Inventory, []*domain.History) {
	inv := make(map[int64]*domain.Inventory, len(s.inv))
	for id, v := range s.inv {
		cp := *v
		inv[id] = &cp
	}
	hist := make([]*domain.History, len(s.hist))
	copy(hist, s.hist)
	return inv, hist
}

type fakeInvRepo struct {
	store *fakeStore

	// 记录行锁的获取顺序
	lockOrder []int64
}

func (r *fakeInvRepo) Find(_ context.Context, productID int64) (*domain.Inventory, error) {
	inv, ok := r.store.inv[productID]
	if !ok {
		return nil, domain.ErrInventoryNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvRepo) FindForUpdate(ctx context.Context, productID int64) (*domain.Inventory, error) {
	r.lockOrder = append(r.lockOrder, productID)
	return r.Find(ctx, productID)
}

func (r *fakeInvRepo) FindBatch(_ context.Context, productIDs []int64) (map[int64]*domain.Inventory, error) {
	out := make(map[int64]*domain.Inventory)
	for _, id := range productIDs {
		if inv, ok := r.store.inv[id]; ok {
			cp := *inv
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *fakeInvRepo) List(_ context.Context, _ paging.Request) ([]*domain.Inventory, int64, error) {
	out := make([]*domain.Inventory, 0, len(r.store.inv))
	for _, inv := range r.store.inv {
		cp := *inv
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *fakeInvRepo) Save(_ context.Context, inv *domain.Inventory) error {
	cp := *inv
	r.store.inv[inv.ProductID] = &cp
	return nil
}

type fakeHistRepo struct{ store *fakeStore }

func (r *fakeHistRepo) Append(_ context.Context, h *domain.History) error {
	cp := *h
	cp.ID = int64(len(r.store.hist) + 1)
	r.store.hist = append(r.store.hist, &cp)
	return nil
}

func (r *fakeHistRepo) FindByOrderID(_ context.Context, orderID int64) ([]*domain.History, error) {
	var out []*domain.History
	for _, h := range r.store.hist {
		if h.OrderID != nil && *h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeHistRepo) FindByProductID(_ context.Context, productID int64, _ paging.Request) ([]*domain.History, int64, error) {
	var out []*domain.History
	for _, h := range r.store.hist {
		if h.ProductID == productID {
			out = append(out, h)
		}
	}
	return out, int64(len(out)), nil
}

type fakeTxRunner struct{ store *fakeStore }

func (t *fakeTxRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	inv, hist := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.inv = inv
		t.store.hist = hist
		return err
	}
	return nil
}

func newService(stock map[int64]int) (*InventoryApplicationService, *fakeStore) {
	svc, store, _ := newServiceWithRepo(stock)
	return svc, store
}

func newServiceWithRepo(stock map[int64]int) (*InventoryApplicationService, *fakeStore, *fakeInvRepo) {
	store := newFakeStore(stock)
	repo := &fakeInvRepo{store: store}
	svc := NewInventoryApplicationService(
		repo,
		&fakeHistRepo{store: store},
		&fakeTxRunner{store: store},
		noop.NewTracerProvider().Tracer("test"),
	)
	return svc, store, repo
}

func TestReserveWritesLedgerAndHistory(t *testing.T) {
	svc, store := newService(map[int64]int{1: 10, 2: 5})
	ctx := context.Background()

	err := svc.Reserve(ctx, 100, map[int64]int{1: 3, 2: 2}, "worker")
	assert.NoError(t, err)

	assert.Equal(t, 7, store.inv[1].Available)
	assert.Equal(t, 3, store.inv[1].Reserved)
	assert.Equal(t, 3, store.inv[2].Available)
	assert.Equal(t, 2, store.inv[2].Reserved)

	assert.Len(t, store.hist, 2)
	for _, h := range store.hist {
		assert.Equal(t, domain.ChangeTypeReserve, h.ChangeType)
		assert.NotNil(t, h.OrderID)
		assert.Equal(t, int64(100), *h.OrderID)
		assert.Equal(t, "worker", h.CreatedBy)
		// 前后快照自洽
		assert.Equal(t, h.AvailableBefore-h.Quantity, h.AvailableAfter)
		assert.Equal(t, h.ReservedBefore+h.Quantity, h.ReservedAfter)
	}
}

func TestReserveIsAllOrNothing(t *testing.T) {
	svc, store := newService(map[int64]int{1: 10, 2: 1})
	ctx := context.Background()

	err := svc.Reserve(ctx, 100, map[int64]int{1: 3, 2: 5}, "worker")
	var insufficient *domain.InsufficientStockError
	assert.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(2), insufficient.ProductID)

	// 商品 1 的部分预留必须随事务回滚
	assert.Equal(t, 10, store.inv[1].Available)
	assert.Equal(t, 0, store.inv[1].Reserved)
	assert.Empty(t, store.hist)
}

func TestReserveLocksProductsInAscendingOrder(t *testing.T) {
	// 两个重叠预留按相同顺序拿行锁才不会互相死锁；
	// 锁顺序固定为 productID 升序，与请求里的排列无关
	svc, _, repo := newServiceWithRepo(map[int64]int{1: 10, 2: 10, 3: 10})
	ctx := context.Background()

	assert.NoError(t, svc.Reserve(ctx, 100, map[int64]int{3: 1, 1: 1, 2: 1}, "worker"))
	assert.Equal(t, []int64{1, 2, 3}, repo.lockOrder)

	repo.lockOrder = nil
	assert.NoError(t, svc.CancelReservation(ctx, 100, "worker"))
	assert.Equal(t, []int64{1, 2, 3}, repo.lockOrder)
}

func TestReserveUnknownProduct(t *testing.T) {
	svc, store := newService(map[int64]int{1: 10})

	err := svc.Reserve(context.Background(), 100, map[int64]int{1: 2, 99: 1}, "worker")
	assert.ErrorIs(t, err, domain.ErrInventoryNotFound)
	assert.Equal(t, 10, store.inv[1].Available)
}

func TestReserveRejectsNonPositive(t *testing.T) {
	svc, _ := newService(map[int64]int{1: 10})
	err := svc.Reserve(context.Background(), 100, map[int64]int{1: 0}, "worker")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestCancelRestoresAvailability(t *testing.T) {
	svc, store := newService(map[int64]int{1: 10})
	ctx := context.Background()

	assert.NoError(t, svc.Reserve(ctx, 100, map[int64]int{1: 4}, "worker"))
	assert.NoError(t, svc.CancelReservation(ctx, 100, "worker"))

	assert.Equal(t, 10, store.inv[1].Available)
	assert.Equal(t, 0, store.inv[1].Reserved)

	assert.Len(t, store.hist, 2)
	assert.Equal(t, domain.ChangeTypeReleaseReserve, store.hist[1].ChangeType)
}

func TestConfirmConsumesReservation(t *testing.T) {
	svc, store := newService(map[int64]int{1: 10})
	ctx := context.Background()

	assert.NoError(t, svc.Reserve(ctx, 100, map[int64]int{1: 4}, "worker"))
	assert.NoError(t, svc.ConfirmReservation(ctx, 100, "worker"))

	assert.Equal(t, 6, store.inv[1].Available)
	assert.Equal(t, 0, store.inv[1].Reserved)
	assert.Equal(t, 6, store.inv[1].Total())
}

func TestConfirmAfterCancelHasNothingToConfirm(t *testing.T) {
	svc, store := newService(map[int64]int{1: 10})
	ctx := context.Background()

	assert.NoError(t, svc.Reserve(ctx, 100, map[int64]int{1: 4}, "worker"))
	assert.NoError(t, svc.CancelReservation(ctx, 100, "worker"))

	// 预留已结清，确认必须被拒绝，台账不动
	err := svc.ConfirmReservation(ctx, 100, "worker")
	assert.ErrorIs(t, err, domain.ErrNoReservation)
	assert.Equal(t, 10, store.inv[1].Available)
	assert.Equal(t, 0, store.inv[1].Reserved)
}

func TestDoubleCancelIsRejected(t *testing.T) {
	svc, _ := newService(map[int64]int{1: 10})
	ctx := context.Background()

	assert.NoError(t, svc.Reserve(ctx, 100, map[int64]int{1: 4}, "worker"))
	assert.NoError(t, svc.CancelReservation(ctx, 100, "worker"))
	assert.ErrorIs(t, svc.CancelReservation(ctx, 100, "worker"), domain.ErrNoReservation)
}

func TestCancelUnknownOrder(t *testing.T) {
	svc, _ := newService(map[int64]int{1: 10})
	assert.ErrorIs(t, svc.CancelReservation(context.Background(), 999, "worker"), domain.ErrNoReservation)
}

func TestUpdateStockCreatesMissingRow(t *testing.T) {
	svc, store := newService(map[int64]int{})

	inv, err := svc.UpdateStock(context.Background(), 42, 20, "admin")
	assert.NoError(t, err)
	assert.Equal(t, 20, inv.Available)

	assert.Equal(t, 20, store.inv[42].Available)
	assert.Len(t, store.hist, 1)
	assert.Equal(t, domain.ChangeTypeAddStock, store.hist[0].ChangeType)
	assert.Equal(t, "admin", store.hist[0].CreatedBy)
	assert.Nil(t, store.hist[0].OrderID)
}

func TestUpdateStockRecordsRemoval(t *testing.T) {
	svc, store := newService(map[int64]int{1: 10})

	_, err := svc.UpdateStock(context.Background(), 1, 4, "admin")
	assert.NoError(t, err)
	assert.Equal(t, 4, store.inv[1].Available)
	assert.Len(t, store.hist, 1)
	assert.Equal(t, domain.ChangeTypeRemoveStock, store.hist[0].ChangeType)
	assert.Equal(t, 6, store.hist[0].Quantity)
}

func TestUpdateStockNoOpWritesNoHistory(t *testing.T) {
	svc, store := newService(map[int64]int{1: 10})

	_, err := svc.UpdateStock(context.Background(), 1, 10, "admin")
	assert.NoError(t, err)
	assert.Empty(t, store.hist)
}

func TestCheckAvailability(t *testing.T) {
	svc, _ := newService(map[int64]int{1: 10, 2: 1})
	ctx := context.Background()

	ok, err := svc.CheckAvailability(ctx, []AvailabilityCheck{{ProductID: 1, Quantity: 10}, {ProductID: 2, Quantity: 1}})
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CheckAvailability(ctx, []AvailabilityCheck{{ProductID: 2, Quantity: 2}})
	assert.NoError(t, err)
	assert.False(t, ok)

	// 缺失商品按不可用处理，而不是报错
	ok, err = svc.CheckAvailability(ctx, []AvailabilityCheck{{ProductID: 99, Quantity: 1}})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateInventoryIsIdempotent(t *testing.T) {
	svc, store := newService(map[int64]int{})
	ctx := context.Background()

	first, err := svc.CreateInventory(ctx, 5, 7, "admin")
	assert.NoError(t, err)
	assert.Equal(t, 7, first.Available)

	second, err := svc.CreateInventory(ctx, 5, 99, "admin")
	assert.NoError(t, err)
	assert.Equal(t, 7, second.Available, "existing row is returned untouched")
	assert.Equal(t, 7, store.inv[5].Available)
}
