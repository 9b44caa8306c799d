package question

import (
	"errors"
	"fmt"
)

// 准入与读取阶段的业务错误，同步返回给调用方
var (
	ErrNotFound        = errors.New("question not found")
	ErrEmptyQuestion   = errors.New("question text is required")
	ErrQuestionTooLong = errors.New("question text exceeds maximum length")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrForbidden       = errors.New("question belongs to another user")
)

// FileRejectedError 附件被拒绝，指明具体文件与原因
type FileRejectedError struct {
	FileName string
	Reason   string
}

func (e *FileRejectedError) Error() string {
	return fmt.Sprintf("file %q rejected: %s", e.FileName, e.Reason)
}
