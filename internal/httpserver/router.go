package httpserver

import (
	"context"
	"net/http"
	"time"

	"progresshub/internal/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Projects *handler.ProjectHandler
	Tasks    *handler.TaskHandler
	SubTasks *handler.SubTaskHandler

	Members      MembershipChecker
	TaskLocator  ProjectLocator
	SubTaskOwner ProjectLocator

	JWTSecret string
	// AssetDir is served under /assets when images are stored locally.
	AssetDir string
	Ready    []ReadinessCheck
	Logger   *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(RequestLogger(d.Logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for _, rc := range d.Ready {
			if err := rc.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": rc.Name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.AssetDir != "" {
		r.Static("/assets", d.AssetDir)
	}

	api := r.Group("/")
	api.Use(AuthMiddleware(d.JWTSecret))

	projectMember := RequireProjectMember(d.Members, ProjectFromParam("id"), d.Logger)
	taskMember := RequireProjectMember(d.Members, ProjectOfParam(d.TaskLocator, "id"), d.Logger)
	subTaskMember := RequireProjectMember(d.Members, ProjectOfParam(d.SubTaskOwner, "id"), d.Logger)

	projects := api.Group("/projects")
	{
		projects.POST("", d.Projects.Create)
		projects.GET("", d.Projects.List)
		projects.GET("/:id", projectMember, d.Projects.Get)
		projects.PATCH("/:id", projectMember, d.Projects.Update)
		projects.DELETE("/:id", projectMember, d.Projects.Delete)
		projects.GET("/:id/tasks", projectMember, d.Projects.ListTasks)
		projects.GET("/:id/subtasks", projectMember, d.Projects.ListSubTasks)
	}

	tasks := api.Group("/tasks")
	{
		tasks.POST("", RequireProjectMember(d.Members, ProjectFromBody(), d.Logger), d.Tasks.Create)
		tasks.GET("", d.Tasks.List)
		tasks.GET("/:id", taskMember, d.Tasks.Get)
		tasks.PATCH("/:id", taskMember, d.Tasks.Update)
		tasks.DELETE("/:id", taskMember, d.Tasks.Delete)
		tasks.GET("/:id/subtasks", taskMember, d.Tasks.ListSubTasks)
	}

	subTasks := api.Group("/subtasks")
	{
		subTasks.POST("", RequireProjectMember(d.Members, TaskProjectFromBody(d.TaskLocator), d.Logger), d.SubTasks.Create)
		subTasks.GET("", d.SubTasks.List)
		subTasks.GET("/:id", subTaskMember, d.SubTasks.Get)
		subTasks.PATCH("/:id", subTaskMember, d.SubTasks.Update)
		subTasks.DELETE("/:id", subTaskMember, d.SubTasks.Delete)
	}

	return r
}
