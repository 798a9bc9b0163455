package handler

import (
	"net/http"

	"progresshub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

type TaskHandler struct {
	tasks    *service.TaskService
	subTasks *service.SubTaskService
	logger   *zap.Logger
}

func NewTaskHandler(tasks *service.TaskService, subTasks *service.SubTaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, subTasks: subTasks, logger: logger}
}

func (h *TaskHandler) Create(c *gin.Context) {
	var in service.CreateTaskInput
	if err := c.ShouldBindBodyWith(&in, binding.JSON); err != nil {
		badRequest(c, h.logger, "CreateTask", "invalid request body", err)
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), in)
	if err != nil {
		WriteError(c, h.logger, "CreateTask", err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// List returns the caller's tasks across all of their projects.
func (h *TaskHandler) List(c *gin.Context) {
	page, size, err := pageParams(c)
	if err != nil {
		WriteError(c, h.logger, "ListTasks", err)
		return
	}
	result, err := h.tasks.ListForUser(c.Request.Context(), UserID(c), page, size)
	if err != nil {
		WriteError(c, h.logger, "ListTasks", err)
		return
	}
	h.logger.Info("ListTasks: success",
		zap.String("user_id", UserID(c)),
		zap.Int("task_count", len(result.Items)),
	)
	c.JSON(http.StatusOK, result)
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, h.logger, "GetTask", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Update(c *gin.Context) {
	var in service.UpdateTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, h.logger, "UpdateTask", "invalid request body", err)
		return
	}
	task, err := h.tasks.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		WriteError(c, h.logger, "UpdateTask", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	h.logger.Info("DeleteTask request received",
		zap.String("task_id", id),
		zap.String("client_ip", c.ClientIP()),
	)
	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		WriteError(c, h.logger, "DeleteTask", err)
		return
	}
	h.logger.Info("DeleteTask: success", zap.String("task_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *TaskHandler) ListSubTasks(c *gin.Context) {
	subTasks, err := h.subTasks.ListByTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, h.logger, "ListTaskSubTasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subTasks": subTasks})
}
