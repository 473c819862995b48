// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"

	"bazaar/internal/pkg/mysql"
	"bazaar/internal/pkg/paging"
	"bazaar/internal/service/order/domain"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository 是 OrderRepository 的 MySQL 实现。
// 写操作通过 mysql.Conn 加入 ctx 携带的环境事务。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save 保存订单及其商品行。商品行以全量 upsert 方式写入，
// 订单行本身不会被删除。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	conn := mysql.Conn(ctx, r.db)
	model := toOrderModel(order)

	if model.ID == 0 {
		if err := conn.Create(model).Error; err != nil {
			return pkgerrors.Wrap(err, "create order")
		}
		// 回填数据库生成的主键
		order.ID = model.ID
		for i := range model.Items {
			order.Items[i].ID = model.Items[i].ID
			order.Items[i].OrderID = model.ID
		}
		return nil
	}

	if err := conn.Omit(clause.Associations).Save(model).Error; err != nil {
		return pkgerrors.Wrap(err, "update order")
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	var model OrderModel
	err := mysql.Conn(ctx, r.db).Preload("Items").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, pkgerrors.Wrap(err, "find order")
	}
	return toOrderDomain(&model), nil
}

// FindForUpdate 以 SELECT ... FOR UPDATE 读取订单行。
// 只有在环境事务内才有意义，自动提交下的行锁立即释放。
func (r *GormOrderRepository) FindForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	tx, ok := mysql.TxFromContext(ctx)
	if !ok {
		return nil, pkgerrors.New("order: FindForUpdate requires an active transaction")
	}

	var model OrderModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, pkgerrors.Wrap(err, "find order for update")
	}
	return toOrderDomain(&model), nil
}

func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID int64, page paging.Request) ([]*domain.Order, int64, error) {
	conn := mysql.Conn(ctx, r.db)

	var total int64
	if err := conn.Model(&OrderModel{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(err, "count user orders")
	}

	var models []OrderModel
	err := conn.Preload("Items").
		Where("user_id = ?", userID).
		Order("id DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&models).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "find user orders")
	}
	return toDomainSlice(models), total, nil
}

func (r *GormOrderRepository) List(ctx context.Context, status domain.Status, page paging.Request) ([]*domain.Order, int64, error) {
	conn := mysql.Conn(ctx, r.db)

	query := conn.Model(&OrderModel{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(err, "count orders")
	}

	var models []OrderModel
	listQuery := conn.Preload("Items")
	if status != "" {
		listQuery = listQuery.Where("status = ?", string(status))
	}
	err := listQuery.Order("id DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&models).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "list orders")
	}
	return toDomainSlice(models), total, nil
}

func toDomainSlice(models []OrderModel) []*domain.Order {
	rows := make([]*domain.Order, 0, len(models))
	for i := range models {
		rows = append(rows, toOrderDomain(&models[i]))
	}
	return rows
}
