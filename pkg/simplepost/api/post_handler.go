package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tendant/simple-post/pkg/simplepost"
)

var (
	bodyPolicy  = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// PostHandler handles HTTP requests for post aggregates
type PostHandler struct {
	service simplepost.Service
}

// NewPostHandler creates a new post handler
func NewPostHandler(service simplepost.Service) *PostHandler {
	return &PostHandler{
		service: service,
	}
}

// Routes returns the routes for posts
func (h *PostHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreatePost)
	r.Get("/", h.ListPosts)
	r.Get("/{slug}", h.GetPost)
	r.Put("/{slug}", h.UpdatePost)
	r.Delete("/{slug}", h.DeletePost)

	return r
}

// ImageRequest describes an image already written to the blob store
type ImageRequest struct {
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// CreatePostRequest is the request body for creating a post. The body text
// is taken from Paragraphs when present, otherwise Body is split on blank lines.
type CreatePostRequest struct {
	OwnerID     string        `json:"owner_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Date        string        `json:"date,omitempty"`
	Visibility  string        `json:"visibility,omitempty"`
	Paragraphs  []string      `json:"paragraphs,omitempty"`
	Body        string        `json:"body,omitempty"`
	Image       *ImageRequest `json:"image,omitempty"`
}

// UpdatePostRequest is the request body for updating a post. Omitting
// images (or sending null) leaves the stored images untouched; an empty
// array removes them all.
type UpdatePostRequest struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description"`
	Date        string          `json:"date,omitempty"`
	Visibility  string          `json:"visibility,omitempty"`
	Paragraphs  []string        `json:"paragraphs,omitempty"`
	Body        string          `json:"body,omitempty"`
	Images      *[]ImageRequest `json:"images"`
}

// MutationResponse is returned by update and delete. Warnings lists items
// whose cleanup failed while the mutation itself went through.
type MutationResponse struct {
	*simplepost.MutationReport
	Warnings []string `json:"warnings,omitempty"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Slug  string `json:"slug,omitempty"`
}

// CreatePost creates a new post aggregate
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		slog.Error("Invalid owner ID", "owner_id", req.OwnerID, "err", err)
		writeError(w, r, http.StatusBadRequest, "Invalid owner ID")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	createReq := simplepost.CreatePostRequest{
		OwnerID:     ownerID,
		Title:       sanitizePlain(req.Title),
		Description: sanitizePlain(req.Description),
		Date:        date,
		Visibility:  simplepost.Visibility(req.Visibility),
		Paragraphs:  paragraphsFrom(req.Paragraphs, req.Body),
	}
	if req.Image != nil {
		createReq.Image = &simplepost.DesiredImage{URL: req.Image.URL, Width: req.Image.Width, Height: req.Image.Height}
	}

	result, err := h.service.Create(r.Context(), createReq)
	if err != nil {
		if !errors.Is(err, simplepost.ErrInvalidInput) {
			slog.Error("Failed to create post", "title", createReq.Title, "err", err)
		}
		resp := ErrorResponse{Error: err.Error()}
		if result != nil {
			resp.Slug = result.Slug
		}
		render.Status(r, statusFor(err))
		render.JSON(w, r, resp)
		return
	}

	slog.Info("Post created", "id", result.ID, "slug", result.Slug)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// GetPost returns a post with its images and paragraphs
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	details, err := h.service.Get(r.Context(), slug)
	if err != nil {
		if !errors.Is(err, simplepost.ErrPostNotFound) {
			slog.Error("Failed to get post", "slug", slug, "err", err)
		}
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	render.JSON(w, r, details)
}

// ListPosts returns posts newest first
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req simplepost.ListPostsRequest

	if v := q.Get("owner_id"); v != "" {
		ownerID, err := uuid.Parse(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid owner ID")
			return
		}
		req.OwnerID = &ownerID
	}
	if v := q.Get("visibility"); v != "" {
		vis := simplepost.Visibility(v)
		req.Visibility = &vis
	}
	for name, dst := range map[string]*int{"limit": &req.Limit, "offset": &req.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name))
				return
			}
			*dst = n
		}
	}

	posts, err := h.service.List(r.Context(), req)
	if err != nil {
		slog.Error("Failed to list posts", "err", err)
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	render.JSON(w, r, posts)
}

// UpdatePost reconciles a post with the desired state in the request
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	updateReq := simplepost.UpdatePostRequest{
		Slug:        slug,
		Title:       sanitizePlain(req.Title),
		Description: sanitizePlain(req.Description),
		Date:        date,
		Visibility:  simplepost.Visibility(req.Visibility),
		Paragraphs:  paragraphsFrom(req.Paragraphs, req.Body),
		SkipImages:  req.Images == nil,
	}
	if req.Images != nil {
		updateReq.Images = make([]simplepost.DesiredImage, 0, len(*req.Images))
		for _, img := range *req.Images {
			updateReq.Images = append(updateReq.Images, simplepost.DesiredImage{URL: img.URL, Width: img.Width, Height: img.Height})
		}
	}

	report, err := h.service.Update(r.Context(), updateReq)
	h.writeMutation(w, r, "update", slug, report, err)
}

// DeletePost removes a post with its images and paragraphs
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	report, err := h.service.Delete(r.Context(), slug)
	h.writeMutation(w, r, "delete", slug, report, err)
}

func (h *PostHandler) writeMutation(w http.ResponseWriter, r *http.Request, op, slug string, report *simplepost.MutationReport, err error) {
	var partial *simplepost.PartialFailure
	switch {
	case err == nil:
		render.JSON(w, r, MutationResponse{MutationReport: report})
	case errors.As(err, &partial):
		slog.Warn("Post "+op+" completed with failures", "slug", slug, "failed", len(partial.Failures))
		resp := MutationResponse{MutationReport: report}
		for _, f := range partial.Failures {
			resp.Warnings = append(resp.Warnings, f.String())
		}
		render.JSON(w, r, resp)
	default:
		if !errors.Is(err, simplepost.ErrPostNotFound) && !errors.Is(err, simplepost.ErrInvalidInput) {
			slog.Error("Failed to "+op+" post", "slug", slug, "err", err)
		}
		writeError(w, r, statusFor(err), err.Error())
	}
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, simplepost.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, simplepost.ErrPostNotFound):
		return http.StatusNotFound
	case errors.Is(err, simplepost.ErrAllocationExhausted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

// parseDate accepts RFC 3339 timestamps and bare dates. Bare dates are
// pinned to 12:00 UTC so they render as the same day in every timezone.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", raw)
	}
	return day.Add(12 * time.Hour), nil
}

// paragraphsFrom sanitizes the explicit paragraph list, or splits body when
// no list was sent. Paragraphs left blank after sanitizing are dropped.
func paragraphsFrom(paragraphs []string, body string) []string {
	if paragraphs == nil {
		paragraphs = simplepost.SplitParagraphs(body)
	}
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = strings.TrimSpace(bodyPolicy.Sanitize(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// maxPlainPasses bounds how many entity layers sanitizePlain peels off.
const maxPlainPasses = 8

// sanitizePlain strips markup and returns unescaped text. Decoding entities
// can surface new tags, so it repeats until a pass changes nothing.
func sanitizePlain(s string) string {
	for i := 0; i < maxPlainPasses; i++ {
		clean := html.UnescapeString(plainPolicy.Sanitize(s))
		if clean == s {
			return strings.TrimSpace(s)
		}
		s = clean
	}
	return strings.TrimSpace(plainPolicy.Sanitize(s))
}
