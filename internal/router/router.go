// Package router 路由注册
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/marville001/eduaiapp/internal/config"
	"github.com/marville001/eduaiapp/internal/handler"
	"github.com/marville001/eduaiapp/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, cfg *config.Config) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.AuthMiddleware(cfg))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// Question 提问
		questions := v1.Group("/questions")
		{
			questions.POST("", h.Question.AskQuestion)
			questions.GET("", middleware.RequireAuth(), h.Question.ListMyQuestions)
			questions.GET("/stats", middleware.RequireAuth(), h.Question.GetStats)
			questions.GET("/:id", h.Question.GetQuestion)
			questions.DELETE("/:id", middleware.RequireAuth(), h.Question.DeleteQuestion)
			questions.GET("/:id/messages", h.Question.GetMessages)
			questions.POST("/:id/messages", h.Conversation.SendFollowUp)
		}

		// Subject 学科
		subjects := v1.Group("/subjects")
		{
			subjects.GET("", h.Subject.ListSubjects)
			subjects.GET("/:id", h.Subject.GetSubject)
		}

		// Usage 用量
		v1.GET("/usage", h.Question.GetUsage)
		v1.GET("/usage/history", h.Question.GetUsageHistory)

		// Admin 管理端
		admin := v1.Group("/admin", middleware.RequireAuth(), middleware.RequireAdmin())
		{
			admin.GET("/questions", h.Admin.ListQuestions)
			admin.GET("/questions/:id", h.Admin.GetQuestion)
		}
	}

	return r
}
