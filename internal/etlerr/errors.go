// Package etlerr 定义作业的错误分类：引用数据缺失、解析失败、数据库冲突与其他意外错误。
// 所有分类都是致命的：批次事务回滚，整个作业失败，不做部分提交。
package etlerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound 必需的引用数据不存在
	ErrNotFound = errors.New("not found")
	// ErrConflict 唯一约束类冲突
	ErrConflict = errors.New("conflict")
	// ErrUnexpected 其他意外错误
	ErrUnexpected = errors.New("unexpected error")
)

// NotFound 构造引用数据缺失错误
func NotFound(entity, key string) error {
	return fmt.Errorf("%s %q: %w", entity, key, ErrNotFound)
}

// DateFormatError 日期无法按任何可接受格式解析
type DateFormatError struct {
	Column string
	Value  string
}

func (e *DateFormatError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("无法解析日期: %q", e.Value)
	}
	return fmt.Sprintf("无法解析日期字段[%s]: %q", e.Column, e.Value)
}

// NumberFormatError 数值无法解析
type NumberFormatError struct {
	Column string
	Value  string
}

func (e *NumberFormatError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("无法解析数值: %q", e.Value)
	}
	return fmt.Sprintf("无法解析数值字段[%s]: %q", e.Column, e.Value)
}

// WithColumn 为解析错误补充字段名（其他错误原样返回）
func WithColumn(err error, column string) error {
	var de *DateFormatError
	if errors.As(err, &de) && de.Column == "" {
		return &DateFormatError{Column: column, Value: de.Value}
	}
	var ne *NumberFormatError
	if errors.As(err, &ne) && ne.Column == "" {
		return &NumberFormatError{Column: column, Value: ne.Value}
	}
	return err
}

// conflictError 保留原始数据库错误，同时可被 errors.Is(err, ErrConflict) 识别
type conflictError struct {
	cause error
}

func (e *conflictError) Error() string { return "数据冲突: " + e.cause.Error() }

func (e *conflictError) Unwrap() []error { return []error{ErrConflict, e.cause} }

// unexpectedError 包装意外错误，附带操作名
type unexpectedError struct {
	op    string
	cause error
}

func (e *unexpectedError) Error() string { return e.op + ": " + e.cause.Error() }

func (e *unexpectedError) Unwrap() []error { return []error{ErrUnexpected, e.cause} }

// Conflict 将唯一约束类错误标记为冲突
func Conflict(err error) error {
	return &conflictError{cause: err}
}

// Unexpected 将错误标记为意外错误
func Unexpected(op string, err error) error {
	return &unexpectedError{op: op, cause: err}
}

// Classify 将数据库层错误归类：唯一冲突→Conflict，已分类错误原样返回，其余→Unexpected
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) {
		return err
	}
	if isUniqueViolation(err) {
		return Conflict(fmt.Errorf("%s: %w", op, err))
	}
	return Unexpected(op, err)
}

// IsClassified 是否已属于本包的某一分类
func IsClassified(err error) bool {
	var de *DateFormatError
	var ne *NumberFormatError
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrUnexpected) ||
		errors.As(err, &de) || errors.As(err, &ne)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
