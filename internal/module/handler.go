package module

import (
	"encoding/json"
	defError "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Quai1921/SmartClass-sub000/internal/content"
	"github.com/Quai1921/SmartClass-sub000/internal/errors"
	"github.com/Quai1921/SmartClass-sub000/internal/utils"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type OpenSessionRequest struct {
	CourseID string `json:"courseId" binding:"required"`
}

func (h *Handler) OpenSession(c *gin.Context) {
	var form OpenSessionRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	state, err := h.service.OpenSession(c.Request.Context(), c.Param("moduleId"), form.CourseID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *Handler) ShowSession(c *gin.Context) {
	state, err := h.service.GetSession(c.Request.Context(), c.Param("moduleId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.service.CloseSession(c.Request.Context(), c.Param("moduleId")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ClearError(c *gin.Context) {
	state, err := h.service.ClearError(c.Request.Context(), c.Param("moduleId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

type CreatePageRequest struct {
	Title string `json:"title" binding:"max=255"`
}

func (h *Handler) CreatePage(c *gin.Context) {
	var form CreatePageRequest
	// body is optional
	if err := c.ShouldBindJSON(&form); err != nil && !defError.Is(err, io.EOF) {
		c.Error(errors.NewValidationError(err))
		return
	}

	result, err := h.service.CreatePage(c.Request.Context(), c.Param("moduleId"), form.Title)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type UpdatePageRequest struct {
	Title    *string            `json:"title" binding:"omitempty,min=1,max=255"`
	Elements *[]content.Element `json:"elements"`
}

func (h *Handler) UpdatePage(c *gin.Context) {
	var form UpdatePageRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	update := content.PageUpdate{Title: form.Title, Elements: form.Elements}
	state, err := h.service.UpdatePage(c.Request.Context(), c.Param("moduleId"), c.Param("pageId"), update)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *Handler) DeletePage(c *gin.Context) {
	state, err := h.service.DeletePage(c.Request.Context(), c.Param("moduleId"), c.Param("pageId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

type ReorderPagesRequest struct {
	PageIDs []string `json:"pageIds" binding:"required,min=1"`
}

func (h *Handler) ReorderPages(c *gin.Context) {
	var form ReorderPagesRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	state, err := h.service.ReorderPages(c.Request.Context(), c.Param("moduleId"), form.PageIDs)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

type NavigationRequest struct {
	Action string `json:"action" binding:"required,oneof=switch next prev"`
	PageID string `json:"pageId" binding:"required_if=Action switch"`
}

func (h *Handler) Navigate(c *gin.Context) {
	var form NavigationRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	result, err := h.service.Navigate(c.Request.Context(), c.Param("moduleId"), NavigationAction(form.Action), form.PageID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AddElementRequest either carries a complete element or the type and
// properties of a new one.
type AddElementRequest struct {
	Element    *content.Element    `json:"element"`
	Type       content.ElementType `json:"type" binding:"required_without=Element"`
	Properties json.RawMessage     `json:"properties"`
}

func (h *Handler) AddElement(c *gin.Context) {
	var form AddElementRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	moduleID, pageID := c.Param("moduleId"), c.Param("pageId")

	if form.Element != nil {
		state, err := h.service.AddElement(c.Request.Context(), moduleID, pageID, *form.Element)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, ElementResult{Element: *form.Element, State: *state})
		return
	}

	if !content.IsKnownType(form.Type) {
		c.Error(errors.UnprocessableEntity(fmt.Sprintf("Unknown element type %q", form.Type), nil))
		return
	}
	props, err := content.DecodeProperties(form.Type, form.Properties)
	if err != nil {
		c.Error(errors.BadRequest("Invalid element properties", err))
		return
	}

	result, err := h.service.CreateElement(c.Request.Context(), moduleID, pageID, props)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type UpdateElementRequest struct {
	Name       *string             `json:"name"`
	Type       content.ElementType `json:"type" binding:"required_with=Properties"`
	Properties json.RawMessage     `json:"properties"`
	Children   *[]content.Element  `json:"children"`
	ParentID   *string             `json:"parentId"`
	Extra      map[string]any      `json:"extra"`
}

func (h *Handler) UpdateElement(c *gin.Context) {
	var form UpdateElementRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	update := content.ElementUpdate{
		Name:     form.Name,
		Children: form.Children,
		ParentID: form.ParentID,
		Extra:    form.Extra,
	}
	if len(form.Properties) > 0 {
		props, err := content.DecodeProperties(form.Type, form.Properties)
		if err != nil {
			c.Error(errors.BadRequest("Invalid element properties", err))
			return
		}
		update.Properties = props
	}

	state, err := h.service.UpdateElement(c.Request.Context(), c.Param("moduleId"), c.Param("pageId"), c.Param("elementId"), update)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *Handler) RemoveElement(c *gin.Context) {
	state, err := h.service.RemoveElement(c.Request.Context(), c.Param("moduleId"), c.Param("pageId"), c.Param("elementId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

type MoveElementRequest struct {
	FromPageID string `json:"fromPageId" binding:"required"`
	ToPageID   string `json:"toPageId" binding:"required"`
}

func (h *Handler) MoveElement(c *gin.Context) {
	var form MoveElementRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	state, err := h.service.MoveElement(c.Request.Context(), c.Param("moduleId"), c.Param("elementId"), form.FromPageID, form.ToPageID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *Handler) Save(c *gin.Context) {
	userID, ok := c.Get("user_id")
	uid, isUint := userID.(uint64)
	if !ok || !isUint {
		c.Error(errors.Unauthorized("User is not authenticated", nil))
		return
	}

	state, err := h.service.Save(c.Request.Context(), c.Param("moduleId"), uid)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *Handler) ShowRevisions(c *gin.Context) {
	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListRevisions(c.Request.Context(), c.Param("moduleId"), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Migrate is called by other services with content in any stored format.
func (h *Handler) Migrate(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(errors.BadRequest("Unable to read request body", err))
		return
	}

	doc := h.service.Migrate(c.Request.Context(), c.Param("moduleId"), c.Query("courseId"), raw)
	c.JSON(http.StatusOK, doc)
}
