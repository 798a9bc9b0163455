package httpserver

import (
	"context"

	"progresshub/internal/apperr"
	"progresshub/internal/handler"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

type MembershipChecker interface {
	CheckMember(ctx context.Context, projectID, userID string) error
}

// ProjectLocator resolves the project a task or subtask belongs to.
type ProjectLocator interface {
	ProjectOf(ctx context.Context, id string) (string, error)
}

// ProjectResolver finds the project a request addresses.
type ProjectResolver func(c *gin.Context) (string, error)

func ProjectFromParam(name string) ProjectResolver {
	return func(c *gin.Context) (string, error) {
		return c.Param(name), nil
	}
}

func ProjectOfParam(locator ProjectLocator, name string) ProjectResolver {
	return func(c *gin.Context) (string, error) {
		return locator.ProjectOf(c.Request.Context(), c.Param(name))
	}
}

// ProjectFromBody reads {"project": "..."} from a JSON body. The body is
// cached by gin so the handler can bind it again.
func ProjectFromBody() ProjectResolver {
	return func(c *gin.Context) (string, error) {
		var body struct {
			Project string `json:"project"`
		}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			return "", apperr.InvalidArgument("invalid request body: %v", err)
		}
		return body.Project, nil
	}
}

// TaskProjectFromBody reads {"task": "..."} from a JSON body and resolves
// that task's project.
func TaskProjectFromBody(locator ProjectLocator) ProjectResolver {
	return func(c *gin.Context) (string, error) {
		var body struct {
			Task string `json:"task"`
		}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			return "", apperr.InvalidArgument("invalid request body: %v", err)
		}
		if body.Task == "" {
			return "", nil
		}
		return locator.ProjectOf(c.Request.Context(), body.Task)
	}
}

// RequireProjectMember rejects callers that are not members of the resolved
// project. An empty id from the body is left to the handler's validation.
func RequireProjectMember(checker MembershipChecker, resolve ProjectResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := resolve(c)
		if err != nil {
			handler.WriteError(c, logger, "RequireProjectMember", err)
			return
		}
		if projectID == "" {
			c.Next()
			return
		}
		if err := checker.CheckMember(c.Request.Context(), projectID, handler.UserID(c)); err != nil {
			handler.WriteError(c, logger, "RequireProjectMember", err)
			return
		}
		c.Next()
	}
}
