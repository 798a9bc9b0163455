package handler

import (
	"errors"
	"net/http"
	"strings"

	"progresshub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projects       *service.ProjectService
	tasks          *service.TaskService
	subTasks       *service.SubTaskService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewProjectHandler(
	projects *service.ProjectService,
	tasks *service.TaskService,
	subTasks *service.SubTaskService,
	maxUploadBytes int64,
	logger *zap.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		projects:       projects,
		tasks:          tasks,
		subTasks:       subTasks,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var in service.CreateProjectInput
	if err := c.ShouldBindBodyWith(&in, binding.JSON); err != nil {
		badRequest(c, h.logger, "CreateProject", "invalid request body", err)
		return
	}
	p, err := h.projects.Create(c.Request.Context(), in, UserID(c))
	if err != nil {
		WriteError(c, h.logger, "CreateProject", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProjectHandler) List(c *gin.Context) {
	page, size, err := pageParams(c)
	if err != nil {
		WriteError(c, h.logger, "ListProjects", err)
		return
	}
	depth, err := queryInt(c, "depth", service.DepthProjects)
	if err != nil {
		WriteError(c, h.logger, "ListProjects", err)
		return
	}
	result, err := h.projects.List(c.Request.Context(), UserID(c), page, size, depth)
	if err != nil {
		WriteError(c, h.logger, "ListProjects", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, h.logger, "GetProject", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Update accepts JSON, or multipart/form-data when an image is uploaded.
func (h *ProjectHandler) Update(c *gin.Context) {
	id := c.Param("id")
	h.logger.Info("UpdateProject request received",
		zap.String("project_id", id),
		zap.String("client_ip", c.ClientIP()),
	)

	var (
		in    service.UpdateProjectInput
		image *service.ImageUpload
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
		if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
			if StatusFor(err) == http.StatusRequestEntityTooLarge {
				WriteError(c, h.logger, "UpdateProject", err)
				return
			}
			badRequest(c, h.logger, "UpdateProject", "invalid multipart body", err)
			return
		}
		if v, ok := c.GetPostForm("name"); ok {
			in.Name = &v
		}
		if v, ok := c.GetPostForm("description"); ok {
			in.Description = &v
		}
		in.Users = c.PostFormArray("users")

		if fh, err := c.FormFile("image"); err == nil {
			f, err := fh.Open()
			if err != nil {
				badRequest(c, h.logger, "UpdateProject", "unreadable image", err)
				return
			}
			defer f.Close()
			image = &service.ImageUpload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Body:        f,
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			badRequest(c, h.logger, "UpdateProject", "invalid image", err)
			return
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, h.logger, "UpdateProject", "invalid request body", err)
		return
	}

	p, err := h.projects.Update(c.Request.Context(), id, in, image)
	if err != nil {
		WriteError(c, h.logger, "UpdateProject", err)
		return
	}
	h.logger.Info("UpdateProject: success", zap.String("project_id", id))
	c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	h.logger.Info("DeleteProject request received",
		zap.String("project_id", id),
		zap.String("client_ip", c.ClientIP()),
	)
	if err := h.projects.Delete(c.Request.Context(), id); err != nil {
		WriteError(c, h.logger, "DeleteProject", err)
		return
	}
	h.logger.Info("DeleteProject: success", zap.String("project_id", id))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *ProjectHandler) ListTasks(c *gin.Context) {
	tasks, err := h.tasks.ListByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, h.logger, "ListProjectTasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *ProjectHandler) ListSubTasks(c *gin.Context) {
	subTasks, err := h.subTasks.ListByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, h.logger, "ListProjectSubTasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subTasks": subTasks})
}
