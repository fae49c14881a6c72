// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	// StatusConfirmed 库存已预占且订单已落库，是目前唯一会产生的状态
	StatusConfirmed Status = "CONFIRMED"
)
