// internal/service/inventory/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"

	"bazaar/internal/pkg/mysql"
	"bazaar/internal/pkg/paging"
	"bazaar/internal/service/inventory/domain"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInventoryRepository 是 InventoryRepository 的 MySQL 实现。
// 写操作通过 mysql.Conn 加入 ctx 携带的环境事务。
type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

func (r *GormInventoryRepository) Find(ctx context.Context, productID int64) (*domain.Inventory, error) {
	var model InventoryModel
	err := mysql.Conn(ctx, r.db).First(&model, "product_id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInventoryNotFound
		}
		return nil, pkgerrors.Wrap(err, "find inventory")
	}
	return toInventoryDomain(&model), nil
}

// FindForUpdate 以 SELECT ... FOR UPDATE 读取台账行。
// 只有在环境事务内才有意义，自动提交下的行锁立即释放。
func (r *GormInventoryRepository) FindForUpdate(ctx context.Context, productID int64) (*domain.Inventory, error) {
	tx, ok := mysql.TxFromContext(ctx)
	if !ok {
		return nil, pkgerrors.New("inventory: FindForUpdate requires an active transaction")
	}

	var model InventoryModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "product_id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInventoryNotFound
		}
		return nil, pkgerrors.Wrap(err, "find inventory for update")
	}
	return toInventoryDomain(&model), nil
}

func (r *GormInventoryRepository) FindBatch(ctx context.Context, productIDs []int64) (map[int64]*domain.Inventory, error) {
	if len(productIDs) == 0 {
		return map[int64]*domain.Inventory{}, nil
	}

	var models []InventoryModel
	err := mysql.Conn(ctx, r.db).Where("product_id IN ?", productIDs).Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find inventory batch")
	}

	result := make(map[int64]*domain.Inventory, len(models))
	for i := range models {
		result[models[i].ProductID] = toInventoryDomain(&models[i])
	}
	return result, nil
}

func (r *GormInventoryRepository) List(ctx context.Context, page paging.Request) ([]*domain.Inventory, int64, error) {
	conn := mysql.Conn(ctx, r.db)

	var total int64
	if err := conn.Model(&InventoryModel{}).Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(err, "count inventory")
	}

	var models []InventoryModel
	err := conn.Order("product_id ASC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&models).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "list inventory")
	}

	rows := make([]*domain.Inventory, 0, len(models))
	for i := range models {
		rows = append(rows, toInventoryDomain(&models[i]))
	}
	return rows, total, nil
}

func (r *GormInventoryRepository) Save(ctx context.Context, inv *domain.Inventory) error {
	model := toInventoryModel(inv)
	err := mysql.Conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"available", "reserved", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return pkgerrors.Wrap(err, "save inventory")
	}
	return nil
}

// GormHistoryRepository 是 HistoryRepository 的 MySQL 实现。
type GormHistoryRepository struct {
	db *gorm.DB
}

func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

func (r *GormHistoryRepository) Append(ctx context.Context, h *domain.History) error {
	model := toHistoryModel(h)
	if err := mysql.Conn(ctx, r.db).Create(model).Error; err != nil {
		return pkgerrors.Wrap(err, "append inventory history")
	}
	h.ID = model.ID
	return nil
}

func (r *GormHistoryRepository) FindByOrderID(ctx context.Context, orderID int64) ([]*domain.History, error) {
	var models []HistoryModel
	err := mysql.Conn(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find history by order")
	}

	rows := make([]*domain.History, 0, len(models))
	for i := range models {
		rows = append(rows, toHistoryDomain(&models[i]))
	}
	return rows, nil
}

func (r *GormHistoryRepository) FindByProductID(ctx context.Context, productID int64, page paging.Request) ([]*domain.History, int64, error) {
	conn := mysql.Conn(ctx, r.db)

	var total int64
	if err := conn.Model(&HistoryModel{}).Where("product_id = ?", productID).Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(err, "count history")
	}

	var models []HistoryModel
	err := conn.Where("product_id = ?", productID).
		Order("id DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&models).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "find history by product")
	}

	rows := make([]*domain.History, 0, len(models))
	for i := range models {
		rows = append(rows, toHistoryDomain(&models[i]))
	}
	return rows, total, nil
}

// GormTxRunner 把 mysql.RunInTx 适配成领域层的 TxRunner。
type GormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) *GormTxRunner {
	return &GormTxRunner{db: db}
}

func (r *GormTxRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return mysql.RunInTx(ctx, r.db, fn)
}
