package domain

import (
	"errors"
	"fmt"
)

// Kind 是下单失败的分类，调用方依据它决定如何响应。
type Kind string

const (
	KindInvalidRequest      Kind = "InvalidRequest"
	KindProductNotFound     Kind = "ProductNotFound"
	KindInsufficientStock   Kind = "InsufficientStock"
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
	// KindPersistence 表示库存已经预占但订单没有落库，需要人工核对
	KindPersistence   Kind = "PersistenceError"
	KindCancelled     Kind = "Cancelled"
	KindOrderNotFound Kind = "OrderNotFound"
	// KindInternal 是服务自身的故障，与请求内容无关
	KindInternal Kind = "InternalError"
)

// Error 是订单用例返回的唯一错误类型。
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf 返回错误链中第一个 *Error 的 Kind，没有时返回空串。
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
