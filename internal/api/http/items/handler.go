// Package items exposes the item surface as a JSON HTTP API.
package items

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/plantworks/manufacturing/internal/api/grpc/operations"
	"github.com/plantworks/manufacturing/internal/errors"
	"github.com/plantworks/manufacturing/internal/item/domain"
	"github.com/plantworks/manufacturing/internal/item/service"
	"github.com/plantworks/manufacturing/internal/platform/metrics"
)

// Handler serves the item HTTP routes.
type Handler struct {
	command *service.Command
	query   *service.Query
}

// NewHandler wires an item HTTP handler over the application services.
func NewHandler(command *service.Command, query *service.Query) *Handler {
	return &Handler{command: command, query: query}
}

// Register mounts the item routes on the mux, instrumented per route.
func (h *Handler) Register(mux *http.ServeMux, m *metrics.Metrics) {
	instrument := func(route string, fn http.HandlerFunc) http.Handler {
		if m == nil {
			return fn
		}
		return m.Instrument(route, fn)
	}

	mux.Handle("POST /v1/items", instrument("create_item", h.createItem))
	mux.Handle("GET /v1/items", instrument("list_items", h.listItems))
	mux.Handle("GET /v1/items/{id}", instrument("get_item", h.getItem))
	mux.Handle("PATCH /v1/items/{id}", instrument("update_item", h.updateItem))
	mux.Handle("DELETE /v1/items/{id}", instrument("delete_item", h.deleteItem))
	// Custom verbs arrive as one path segment, e.g. "b-max:block".
	mux.Handle("POST /v1/items/{idverb}", instrument("item_verb", h.itemVerb))
}

type itemPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	State       string `json:"state"`
	Etag        string `json:"etag"`
	UID         string `json:"uid"`
	CreateTime  string `json:"create_time"`
	UpdateTime  string `json:"update_time"`
}

func toPayload(item domain.Item) itemPayload {
	return itemPayload{
		ID:          item.ID,
		DisplayName: item.DisplayName,
		Title:       item.Title,
		Description: item.Description,
		State:       item.State.String(),
		Etag:        item.Etag,
		UID:         item.UID,
		CreateTime:  item.CreateTime.UTC().Format(time.RFC3339Nano),
		UpdateTime:  item.UpdateTime.UTC().Format(time.RFC3339Nano),
	}
}

type operationPayload struct {
	Name     string         `json:"name"`
	Done     bool           `json:"done"`
	Response itemPayload    `json:"response"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func toOperationPayload(result service.MutationResult, verb string) operationPayload {
	return operationPayload{
		Name:     operations.OperationName(result.OperationID),
		Done:     true,
		Response: toPayload(result.Item),
		Metadata: map[string]any{
			"item_id": result.Item.ID,
			"verb":    verb,
			"item":    toPayload(result.Item),
		},
	}
}

type createRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateRequest struct {
	DisplayName *string `json:"display_name"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Etag        string  `json:"etag"`
}

type transitionRequest struct {
	Etag string `json:"etag"`
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.command.CreateItem(r.Context(), service.CreateItemRequest{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOperationPayload(result, "create"))
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.query.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("ETag", item.Etag)
	writeJSON(w, http.StatusOK, toPayload(item))
}

type listResponse struct {
	Items         []itemPayload `json:"items"`
	NextPageToken string        `json:"next_page_token,omitempty"`
	TotalSize     int           `json:"total_size"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var pageSize *int32
	if raw := q.Get("page_size"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			writeError(w, errors.New(errors.CodeInvalidArgument, "page_size must be an integer"))
			return
		}
		value := int32(parsed)
		pageSize = &value
	}

	page, err := h.query.ListItems(r.Context(), service.ListItemsRequest{
		Filter:    q.Get("filter"),
		OrderBy:   q.Get("order_by"),
		PageSize:  pageSize,
		PageToken: q.Get("page_token"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listResponse{
		Items:         make([]itemPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
		TotalSize:     page.TotalSize,
	}
	for _, item := range page.Items {
		resp.Items = append(resp.Items, toPayload(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.command.UpdateItem(r.Context(), service.UpdateItemRequest{
		ID: r.PathValue("id"),
		Overrides: domain.UpdateOverrides{
			DisplayName: req.DisplayName,
			Title:       req.Title,
			Description: req.Description,
		},
		Etag: requestEtag(r, req.Etag),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOperationPayload(result, "update"))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	result, err := h.command.DeleteItem(r.Context(), service.TransitionRequest{
		ID:   r.PathValue("id"),
		Etag: requestEtag(r, ""),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOperationPayload(result, "delete"))
}

func (h *Handler) itemVerb(w http.ResponseWriter, r *http.Request) {
	segment := r.PathValue("idverb")
	id, verb, ok := strings.Cut(segment, ":")
	if !ok {
		writeError(w, errors.New(errors.CodeNotFound, "unknown item action"))
		return
	}

	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	transition := service.TransitionRequest{ID: id, Etag: requestEtag(r, req.Etag)}

	var result service.MutationResult
	var err error
	switch verb {
	case "block":
		result, err = h.command.BlockItem(r.Context(), transition)
	case "unblock":
		result, err = h.command.UnblockItem(r.Context(), transition)
	case "annihilate":
		result, err = h.command.AnnihilateItem(r.Context(), transition)
	default:
		writeError(w, errors.New(errors.CodeNotFound, "unknown item action"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOperationPayload(result, verb))
}

// requestEtag prefers the If-Match header over a body field.
func requestEtag(r *http.Request, bodyEtag string) string {
	if header := strings.TrimSpace(r.Header.Get("If-Match")); header != "" {
		return header
	}
	return bodyEtag
}

// decodeBody parses an optional JSON body. An empty body is allowed.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "invalid request body", err)
	}
	return nil
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	detail := errorDetail{
		Code:     string(code),
		Message:  err.Error(),
		Metadata: errors.GetMetadata(err),
	}
	if code == errors.CodeUnknown {
		// Do not leak internals through the API surface.
		detail.Message = "internal error"
		log.Printf("item handler error: %v", err)
	}
	writeJSON(w, code.HTTPStatus(), errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}
