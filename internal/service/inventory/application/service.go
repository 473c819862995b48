// internal/service/inventory/application/service.go
package application

import (
	"context"
	"sort"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/metrics"
	"bazaar/internal/pkg/paging"
	"bazaar/internal/service/inventory/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AvailabilityCheck 是可用性检查的一行输入。
type AvailabilityCheck struct {
	ProductID int64
	Quantity  int
}

// HistoryPage 是分页的审计记录结果。
type HistoryPage struct {
	Content []*domain.History
	Page    paging.Info
}

// InventoryPage 是分页的台账结果。
type InventoryPage struct {
	Content []*domain.Inventory
	Page    paging.Info
}

// InventoryApplicationService 是库存预留引擎的应用服务。
// 每个写操作运行在一个数据库事务中：台账更新与审计记录同生共死。
type InventoryApplicationService struct {
	invRepo  domain.InventoryRepository
	histRepo domain.HistoryRepository
	tx       domain.TxRunner
	tracer   trace.Tracer
}

func NewInventoryApplicationService(
	invRepo domain.InventoryRepository,
	histRepo domain.HistoryRepository,
	tx domain.TxRunner,
	tracer trace.Tracer,
) *InventoryApplicationService {
	return &InventoryApplicationService{
		invRepo:  invRepo,
		histRepo: histRepo,
		tx:       tx,
		tracer:   tracer,
	}
}

// Reserve 为一个订单批量预留库存，整批要么全部成功要么全部回滚。
// 商品按 productID 升序加锁，避免交叠订单互相死锁。
func (s *InventoryApplicationService) Reserve(ctx context.Context, orderID int64, quantities map[int64]int, actor string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.Reserve")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.Int("product.count", len(quantities)))

	productIDs := make([]int64, 0, len(quantities))
	for id, qty := range quantities {
		if qty <= 0 {
			return domain.ErrInvalidQuantity
		}
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		for _, productID := range productIDs {
			qty := quantities[productID]
			inv, err := s.invRepo.FindForUpdate(txCtx, productID)
			if err != nil {
				return err
			}

			before := *inv
			if err := inv.Reserve(qty); err != nil {
				return err
			}
			if err := s.invRepo.Save(txCtx, inv); err != nil {
				return err
			}

			entry := domain.NewHistory(productID, domain.ChangeTypeReserve, qty, &before, inv, &orderID, actor)
			if err := s.histRepo.Append(txCtx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if domain.IsBusinessError(err) {
			metrics.ReservationRejections.Inc()
			logger.Ctx(ctx).Warn().Err(err).Int64("order_id", orderID).Msg("reservation rejected")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation failed")
		return err
	}

	logger.Ctx(ctx).Info().Int64("order_id", orderID).Int("products", len(productIDs)).Msg("stock reserved")
	return nil
}

// ConfirmReservation 永久消耗订单的未结清预留（发货）。
// 预留集合从审计记录对账得出：RESERVE 减去已有的 RELEASE/CONFIRM。
// 没有未结清预留时返回 ErrNoReservation，因此天然拒绝重复确认。
func (s *InventoryApplicationService) ConfirmReservation(ctx context.Context, orderID int64, actor string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.ConfirmReservation")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID))

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return s.settleReservation(txCtx, orderID, actor, domain.ChangeTypeConfirmReserve)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm failed")
		return err
	}
	logger.Ctx(ctx).Info().Int64("order_id", orderID).Msg("reservation confirmed")
	return nil
}

// CancelReservation 把订单的未结清预留退回可用库存。
func (s *InventoryApplicationService) CancelReservation(ctx context.Context, orderID int64, actor string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.CancelReservation")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID))

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return s.settleReservation(txCtx, orderID, actor, domain.ChangeTypeReleaseReserve)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return err
	}
	logger.Ctx(ctx).Info().Int64("order_id", orderID).Msg("reservation released")
	return nil
}

// settleReservation 结清一个订单的预留：confirm 消耗，release 退回。
// 必须在事务内调用。
func (s *InventoryApplicationService) settleReservation(txCtx context.Context, orderID int64, actor string, settleType domain.ChangeType) error {
	outstanding, err := s.outstandingReservations(txCtx, orderID)
	if err != nil {
		return err
	}
	if len(outstanding) == 0 {
		return domain.ErrNoReservation
	}

	productIDs := make([]int64, 0, len(outstanding))
	for id := range outstanding {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	for _, productID := range productIDs {
		qty := outstanding[productID]
		inv, err := s.invRepo.FindForUpdate(txCtx, productID)
		if err != nil {
			return err
		}

		before := *inv
		if settleType == domain.ChangeTypeConfirmReserve {
			err = inv.Confirm(qty)
		} else {
			err = inv.Release(qty)
		}
		if err != nil {
			return err
		}
		if err := s.invRepo.Save(txCtx, inv); err != nil {
			return err
		}

		entry := domain.NewHistory(productID, settleType, qty, &before, inv, &orderID, actor)
		if err := s.histRepo.Append(txCtx, entry); err != nil {
			return err
		}
	}
	return nil
}

// outstandingReservations 对账某订单尚未结清的预留数量（按商品）。
// 审计记录是预留的权威来源，这里没有独立的预留表。
func (s *InventoryApplicationService) outstandingReservations(ctx context.Context, orderID int64) (map[int64]int, error) {
	records, err := s.histRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	outstanding := make(map[int64]int)
	for _, h := range records {
		switch h.ChangeType {
		case domain.ChangeTypeReserve:
			outstanding[h.ProductID] += h.Quantity
		case domain.ChangeTypeReleaseReserve, domain.ChangeTypeConfirmReserve:
			outstanding[h.ProductID] -= h.Quantity
		}
	}
	for id, qty := range outstanding {
		if qty < 0 {
			return nil, domain.ErrLedgerCorrupted
		}
		if qty == 0 {
			delete(outstanding, id)
		}
	}
	return outstanding, nil
}

// UpdateStock 管理端绝对值设置可用库存。台账行不存在时创建（铺货路径）。
func (s *InventoryApplicationService) UpdateStock(ctx context.Context, productID int64, newAvailable int, actor string) (*domain.Inventory, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.UpdateStock")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int("available.new", newAvailable))

	var result *domain.Inventory
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invRepo.FindForUpdate(txCtx, productID)
		if err != nil {
			if err != domain.ErrInventoryNotFound {
				return err
			}
			inv = domain.NewInventory(productID, 0)
		}

		before := *inv
		delta, changeType, err := inv.SetAvailable(newAvailable)
		if err != nil {
			return err
		}
		if err := s.invRepo.Save(txCtx, inv); err != nil {
			return err
		}

		if delta > 0 {
			entry := domain.NewHistory(productID, changeType, delta, &before, inv, nil, actor)
			if err := s.histRepo.Append(txCtx, entry); err != nil {
				return err
			}
		}
		result = inv
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

// CreateInventory 为新商品建立台账行；已存在时直接返回现有行。
func (s *InventoryApplicationService) CreateInventory(ctx context.Context, productID int64, initialQty int, actor string) (*domain.Inventory, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.CreateInventory")
	defer span.End()

	if initialQty < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var result *domain.Inventory
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.invRepo.Find(txCtx, productID)
		if err == nil {
			logger.Ctx(txCtx).Warn().Int64("product_id", productID).Msg("inventory already exists for product")
			result = existing
			return nil
		}
		if err != domain.ErrInventoryNotFound {
			return err
		}

		inv := domain.NewInventory(productID, initialQty)
		if err := s.invRepo.Save(txCtx, inv); err != nil {
			return err
		}
		if initialQty > 0 {
			zero := domain.NewInventory(productID, 0)
			entry := domain.NewHistory(productID, domain.ChangeTypeAddStock, initialQty, zero, inv, nil, actor)
			if err := s.histRepo.Append(txCtx, entry); err != nil {
				return err
			}
		}
		result = inv
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

// CheckAvailability 是纯谓词：所有行都满足 available >= qty 才为真。
// 不加锁也不产生副作用。
func (s *InventoryApplicationService) CheckAvailability(ctx context.Context, items []AvailabilityCheck) (bool, error) {
	productIDs := make([]int64, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}

	inventories, err := s.invRepo.FindBatch(ctx, productIDs)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		inv, ok := inventories[item.ProductID]
		if !ok || inv.Available < item.Quantity {
			return false, nil
		}
	}
	return true, nil
}

// IsProductAvailable 检查单个商品的可用量。
func (s *InventoryApplicationService) IsProductAvailable(ctx context.Context, productID int64, qty int) (bool, error) {
	inv, err := s.invRepo.Find(ctx, productID)
	if err != nil {
		if err == domain.ErrInventoryNotFound {
			return false, nil
		}
		return false, err
	}
	return inv.Available >= qty, nil
}

// GetInventory 读取单个商品的台账行。
func (s *InventoryApplicationService) GetInventory(ctx context.Context, productID int64) (*domain.Inventory, error) {
	return s.invRepo.Find(ctx, productID)
}

// ListInventory 分页列出全部台账行。
func (s *InventoryApplicationService) ListInventory(ctx context.Context, page paging.Request) (*InventoryPage, error) {
	page = page.Normalize()
	rows, total, err := s.invRepo.List(ctx, page)
	if err != nil {
		return nil, err
	}
	return &InventoryPage{Content: rows, Page: paging.NewInfo(page, total)}, nil
}

// GetHistory 分页返回某商品的审计记录，新的在前。
func (s *InventoryApplicationService) GetHistory(ctx context.Context, productID int64, page paging.Request) (*HistoryPage, error) {
	page = page.Normalize()
	rows, total, err := s.histRepo.FindByProductID(ctx, productID, page)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Content: rows, Page: paging.NewInfo(page, total)}, nil
}
