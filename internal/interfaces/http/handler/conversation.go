package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pascalkienast/H5P-AI-Generator/internal/application/generation"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/repository"
	"github.com/pascalkienast/H5P-AI-Generator/internal/interfaces/http/dto"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/logger"
)

// ConversationHandler 会话处理器
type ConversationHandler struct {
	orchestrator *generation.Orchestrator
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(orchestrator *generation.Orchestrator) *ConversationHandler {
	return &ConversationHandler{orchestrator: orchestrator}
}

// Create 创建会话
// @Summary 创建内容创建会话
// @Tags Conversation
// @Accept json
// @Produce json
// @Param request body dto.CreateSessionRequest false "会话参数"
// @Success 201 {object} dto.Response[dto.SessionResponse]
// @Router /v1/sessions [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body")
			return
		}
	}

	session, err := h.orchestrator.StartSession(c.Request.Context(), req.Provider)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Created(c, dto.NewSessionResponse(session))
}

// Get 查询会话
// @Summary 查询会话状态
// @Tags Conversation
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Router /v1/sessions/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	session, err := h.orchestrator.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.NewSessionResponse(session))
}

// PostMessage 发送消息
// @Summary 发送用户消息并推进会话
// @Tags Conversation
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body dto.MessageRequest true "用户消息"
// @Success 200 {object} dto.Response[dto.MessageResponse]
// @Router /v1/sessions/{id}/messages [post]
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	var req dto.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "text is required")
		return
	}

	result, err := h.orchestrator.HandleMessage(c.Request.Context(), c.Param("id"), req.Text, req.Provider)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	resp, err := dto.NewMessageResponse(result)
	if err != nil {
		logger.Error(c.Request.Context(), "序列化消息响应失败", err)
		dto.Error(c, 500, "internal server error")
		return
	}
	dto.Success(c, resp)
}

// Generate 触发内容生成
// @Summary 按已确定的内容类型生成文档并提交
// @Tags Conversation
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body dto.GenerateRequest false "生成参数"
// @Success 200 {object} dto.Response[dto.MessageResponse]
// @Router /v1/sessions/{id}/generate [post]
func (h *ConversationHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body")
			return
		}
	}

	result, err := h.orchestrator.Generate(c.Request.Context(), c.Param("id"), req.Provider)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	resp, err := dto.NewMessageResponse(result)
	if err != nil {
		logger.Error(c.Request.Context(), "序列化消息响应失败", err)
		dto.Error(c, 500, "internal server error")
		return
	}
	dto.Success(c, resp)
}

// ListTurns 查询会话历史
// @Summary 分页查询会话历史消息
// @Tags Conversation
// @Produce json
// @Param id path string true "会话 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.TurnResponse]
// @Router /v1/sessions/{id}/turns [get]
func (h *ConversationHandler) ListTurns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	pagination := repository.NewPagination(page, pageSize)

	result, err := h.orchestrator.ListTurns(c.Request.Context(), c.Param("id"), pagination)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.NewTurnResponses(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}
