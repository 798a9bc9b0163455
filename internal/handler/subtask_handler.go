package handler

import (
	"net/http"

	"progresshub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

type SubTaskHandler struct {
	subTasks *service.SubTaskService
	logger   *zap.Logger
}

func NewSubTaskHandler(subTasks *service.SubTaskService, logger *zap.Logger) *SubTaskHandler {
	return &SubTaskHandler{subTasks: subTasks, logger: logger}
}

func (h *SubTaskHandler) Create(c *gin.Context) {
	var in service.CreateSubTaskInput
	if err := c.ShouldBindBodyWith(&in, binding.JSON); err != nil {
		badRequest(c, h.logger, "CreateSubTask", "invalid request body", err)
		return
	}
	st, err := h.subTasks.Create(c.Request.Context(), in)
	if err != nil {
		WriteError(c, h.logger, "CreateSubTask", err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *SubTaskHandler) List(c *gin.Context) {
	page, size, err := pageParams(c)
	if err != nil {
		WriteError(c, h.logger, "ListSubTasks", err)
		return
	}
	result, err := h.subTasks.ListForUser(c.Request.Context(), UserID(c), page, size)
	if err != nil {
		WriteError(c, h.logger, "ListSubTasks", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SubTaskHandler) Get(c *gin.Context) {
	st, err := h.subTasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, h.logger, "GetSubTask", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *SubTaskHandler) Update(c *gin.Context) {
	var in service.UpdateSubTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, h.logger, "UpdateSubTask", "invalid request body", err)
		return
	}
	st, err := h.subTasks.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		WriteError(c, h.logger, "UpdateSubTask", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *SubTaskHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.subTasks.Delete(c.Request.Context(), id); err != nil {
		WriteError(c, h.logger, "DeleteSubTask", err)
		return
	}
	h.logger.Info("DeleteSubTask: success", zap.String("subtask_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
