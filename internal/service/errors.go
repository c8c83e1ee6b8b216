package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidComment  = errors.New("invalid comment")
	ErrCommentNotFound = errors.New("comment not found")
	ErrStorage         = errors.New("storage failure")
)

// storageError 包装存储层错误，保留原始原因
func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
