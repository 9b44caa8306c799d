package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marville001/eduaiapp/internal/service/conversation"
	"github.com/marville001/eduaiapp/internal/service/question"
	"github.com/marville001/eduaiapp/internal/service/subject"
	"github.com/marville001/eduaiapp/internal/service/usage"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Success 成功响应 (200)
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// Created 创建成功响应 (201)
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: data})
}

// NoContent 无内容响应 (204)
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Msg: msg})
}

// Unauthorized 401 错误响应
func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Code: 401, Msg: msg})
}

// Forbidden 403 错误响应
func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, ErrorResponse{Code: 403, Msg: msg})
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Code: 404, Msg: msg})
}

// Conflict 409 错误响应
func Conflict(c *gin.Context, msg string) {
	c.JSON(http.StatusConflict, ErrorResponse{Code: 409, Msg: msg})
}

// TooManyRequests 429 错误响应
func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, ErrorResponse{Code: 429, Msg: msg})
}

// InternalServerError 500 错误响应
func InternalServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Msg: msg})
}

// Error 根据错误类型返回相应的错误响应
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var fileErr *question.FileRejectedError
	switch {
	case errors.Is(err, question.ErrNotFound),
		errors.Is(err, conversation.ErrNotFound),
		errors.Is(err, subject.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, usage.ErrQuotaExceeded):
		TooManyRequests(c, err.Error())
	case errors.Is(err, conversation.ErrConversationNotReady),
		errors.Is(err, conversation.ErrConversationBusy):
		Conflict(c, err.Error())
	case errors.Is(err, question.ErrForbidden):
		Forbidden(c, err.Error())
	case errors.Is(err, question.ErrEmptyQuestion),
		errors.Is(err, question.ErrQuestionTooLong),
		errors.Is(err, question.ErrSubjectNotFound),
		errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, conversation.ErrMessageTooLong),
		errors.As(err, &fileErr):
		BadRequest(c, err.Error())
	default:
		InternalServerError(c, err.Error())
	}
}

// PaginationData 分页响应数据结构
type PaginationData struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages,omitempty"`
}

// SuccessWithPagination 分页成功响应
func SuccessWithPagination(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data: PaginationData{
			Items:      items,
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
		},
	})
}
