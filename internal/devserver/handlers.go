package devserver

import (
	"errors"
	"fmt"
	"strings"

	"postsync/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 1000
)

// ListResponse is the paginated envelope of GET on the collection.
type ListResponse struct {
	Count    int64               `json:"count"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
	Results  []models.RemotePost `json:"results"`
}

// ListPosts handles GET /careers/?limit=&offset=
func (s *Server) ListPosts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	records, total, err := s.repo.List(c.UserContext(), limit, offset)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	resp := ListResponse{Count: total, Results: make([]models.RemotePost, 0, len(records))}
	for _, r := range records {
		resp.Results = append(resp.Results, r.ToRemote())
	}
	if int64(offset+limit) < total {
		next := pageURL(c, limit, offset+limit)
		resp.Next = &next
	}
	if offset > 0 {
		prev := pageURL(c, limit, max(offset-limit, 0))
		resp.Previous = &prev
	}
	return c.JSON(resp)
}

// CreatePost handles POST /careers/
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Title    string `json:"title"`
		Content  string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username, title and content are required"))
	}

	record := &PostRecord{Username: req.Username, Title: req.Title, Content: req.Content}
	if err := s.repo.Create(c.UserContext(), record); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.Status(fiber.StatusCreated).JSON(record.ToRemote())
}

// UpdatePost handles PATCH /careers/:id/
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid post ID"))
	}

	var req struct {
		Title    *string `json:"title"`
		Content  *string `json:"content"`
		ImageURL *string `json:"imageUrl"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	record, err := s.repo.Update(c.UserContext(), uint(id), PostPatch{
		Title:    req.Title,
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Post", id))
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(record.ToRemote())
}

// DeletePost handles DELETE /careers/:id/
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid post ID"))
	}

	err = s.repo.Delete(c.UserContext(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Post", id))
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func pageURL(c *fiber.Ctx, limit, offset int) string {
	return fmt.Sprintf("%s%s?limit=%d&offset=%d", c.BaseURL(), c.Path(), limit, offset)
}
