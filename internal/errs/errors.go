// Package errs 定义领域错误分类，校验失败在服务层边界转换为带字段标记的结构化错误
package errs

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindNotFound     Kind = iota // 车位/账户/预约不存在
	KindInvalidState             // 状态机守卫或准入规则拒绝
	KindUnauthorized             // 操作者不是预约归属人
	KindInternal                 // 存储或传输故障
)

// Error 领域错误，Field 标记触发校验失败的表单字段
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound 构造未找到错误
func NotFound(field, msg string) *Error {
	return &Error{Kind: KindNotFound, Field: field, Msg: msg}
}

// InvalidState 构造状态/规则拒绝错误
func InvalidState(field, msg string) *Error {
	return &Error{Kind: KindInvalidState, Field: field, Msg: msg}
}

// Unauthorized 构造权限错误
func Unauthorized(field, msg string) *Error {
	return &Error{Kind: KindUnauthorized, Field: field, Msg: msg}
}

// Internal 包装底层故障
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Field: "error", Msg: msg, Err: err}
}

// KindOf 取错误类别，非领域错误一律视为 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError 取领域错误本体，非领域错误包装为 Internal
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("Internal server error", err)
}
