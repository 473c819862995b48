// internal/service/order/domain/status.go
package domain

import "fmt"

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending   Status = "PENDING"   // 已创建，等待确认
	StatusConfirmed Status = "CONFIRMED" // 已确认，等待发货
	StatusShipped   Status = "SHIPPED"   // 已发货，预留库存在此刻被永久消耗
	StatusDelivered Status = "DELIVERED" // 已送达，终态
	StatusCancelled Status = "CANCELLED" // 已取消，终态；预留库存退回
)

// allowedTransitions 是状态机的唯一事实来源。
// DELIVERED 与 CANCELLED 是终态，没有出边。
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// Valid 报告 s 是否是已知状态。
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal 报告 s 是否为终态。
func (s Status) Terminal() bool {
	targets, ok := allowedTransitions[s]
	return ok && len(targets) == 0
}

// CanTransitionTo 报告从 s 到 target 的流转是否被状态机允许。
// 自身到自身不算合法流转。
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// InvalidTransitionError 指明被状态机拒绝的流转。
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order: invalid status transition %s -> %s", e.From, e.To)
}
