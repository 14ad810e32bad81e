package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pascalkienast/H5P-AI-Generator/internal/application/library"
	"github.com/pascalkienast/H5P-AI-Generator/internal/interfaces/http/dto"
	"github.com/pascalkienast/H5P-AI-Generator/internal/schema"
)

// LibraryHandler 内容库处理器
type LibraryHandler struct {
	versions *library.Service
	registry *schema.Registry
}

// NewLibraryHandler 创建内容库处理器
func NewLibraryHandler(versions *library.Service, registry *schema.Registry) *LibraryHandler {
	return &LibraryHandler{
		versions: versions,
		registry: registry,
	}
}

// Versions 查询内容库版本表
// @Summary 查询当前可用的内容库版本
// @Tags Library
// @Produce json
// @Success 200 {object} dto.Response[dto.LibraryVersionsResponse]
// @Router /v1/libraries/versions [get]
func (h *LibraryHandler) Versions(c *gin.Context) {
	versions, err := h.versions.Versions(c.Request.Context())
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.LibraryVersionsResponse{Versions: versions})
}

// ContentTypes 查询受支持的内容类型
// @Summary 查询生成流水线支持的内容类型
// @Tags Library
// @Produce json
// @Success 200 {object} dto.Response[[]dto.ContentTypeResponse]
// @Router /v1/content-types [get]
func (h *LibraryHandler) ContentTypes(c *gin.Context) {
	types := h.registry.ListSupported()
	out := make([]dto.ContentTypeResponse, 0, len(types))
	for _, t := range types {
		out = append(out, dto.ContentTypeResponse{
			MachineName:    t.MachineName,
			DisplayName:    t.DisplayName,
			DefaultVersion: t.DefaultVersion,
			Limitations:    t.Limitations,
		})
	}
	dto.Success(c, out)
}
