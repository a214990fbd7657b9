package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dshills/usersvc/users"
)

type handler struct {
	svc *users.Service
	log *zap.Logger
}

// userRequest is the body of POST /users and PUT /users/:id after
// normalization. A field that is absent or holds a JSON falsy value ("", null,
// false, 0) is left empty, which the service rejects.
type userRequest struct {
	Name  string
	Email string
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) create(c *gin.Context) {
	req, ok := bindUser(c)
	if !ok {
		return
	}

	u, err := h.svc.Create(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *handler) get(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) update(c *gin.Context) {
	req, ok := bindUser(c)
	if !ok {
		return
	}

	u, err := h.svc.Update(c.Request.Context(), c.Param("id"), req.Name, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) healthz(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindUser decodes the request body. Only bodies that fail to parse are
// rejected here. An empty body, a non-object body and falsy field values all
// reach the service as missing fields. Otherwise, truthy non-string fields
// cannot be stored and are rejected as an invalid body.
func bindUser(c *gin.Context) (userRequest, bool) {
	var body any
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: MsgInvalidBody})
		return userRequest{}, false
	}

	fields, _ := body.(map[string]any)
	name, nameOK := stringField(fields, "name")
	email, emailOK := stringField(fields, "email")
	missing := (nameOK && name == "") || (emailOK && email == "")
	if !missing && (!nameOK || !emailOK) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: MsgInvalidBody})
		return userRequest{}, false
	}
	return userRequest{Name: name, Email: email}, true
}

// stringField reads key from fields. Falsy values yield "". ok is false only
// for truthy values that are not strings.
func stringField(fields map[string]any, key string) (value string, ok bool) {
	switch v := fields[key].(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return "", !v
	case float64:
		return "", v == 0
	default:
		return "", false
	}
}

// fail maps a service error to its HTTP status and error body.
func (h *handler) fail(c *gin.Context, err error) {
	var se *users.ServiceError
	message := users.MsgInternal
	if errors.As(err, &se) {
		message = se.Message
	}

	switch users.CodeOf(err) {
	case users.CodeInvalidInput:
		c.JSON(http.StatusBadRequest, errorResponse{Error: message})
	case users.CodeNotFound:
		c.JSON(http.StatusNotFound, errorResponse{Error: message})
	default:
		h.log.Error("request failed",
			zap.Error(err),
			zap.String("request_id", users.RequestIDFrom(c.Request.Context())),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: users.MsgInternal})
	}
}
