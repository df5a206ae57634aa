// Package api exposes a board.Board as a JSON HTTP API.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jacentio/grove/board"
	"github.com/jacentio/grove/post"
)

// SecretHeader carries the viewer's secret on read requests.
const SecretHeader = "X-Grove-Secret"

// DefaultPageSize is the listing count when the request has none.
const DefaultPageSize = 20

// Handlers serves the API routes.
type Handlers struct {
	board  *board.Board
	logger *slog.Logger
}

// NewHandler creates a new Handlers instance.
func NewHandler(b *board.Board, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		board:  b,
		logger: logger,
	}
}

// Router returns a router with every API route registered.
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()

	p := router.PathPrefix("/api/post").Subrouter()
	p.HandleFunc("/{id}", h.GetPost).Methods(http.MethodGet)
	p.HandleFunc("/{id}/children", h.GetChildren).Methods(http.MethodGet)
	p.HandleFunc("/{id}/children", h.CreatePost).Methods(http.MethodPost)
	p.HandleFunc("/{id}/edit", h.EditPost).Methods(http.MethodPost)
	p.HandleFunc("/{id}/reward", h.RewardPost).Methods(http.MethodPost)

	router.HandleFunc("/api/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/api/account/{hash}", h.GetAccount).Methods(http.MethodGet)
	router.HandleFunc("/api/account/{hash}/posts", h.GetCreated).Methods(http.MethodGet)
	router.HandleFunc("/api/account/{hash}/rewarded", h.GetRewarded).Methods(http.MethodGet)

	return router
}

type writeRequest struct {
	Secret         string              `json:"secret"`
	Content        string              `json:"content"`
	ChildrenRights post.ChildrenRights `json:"children_rights"`
}

type rewardRequest struct {
	Secret string `json:"secret"`
	Amount int    `json:"amount"`
}

type loginRequest struct {
	Secret string `json:"secret"`
}

type idResponse struct {
	ID string `json:"id"`
}

// GetPost returns the post with the given id or slug.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	view, err := h.board.View(r.Context(), id, r.Header.Get(SecretHeader))
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	respond(w, h.logger, http.StatusOK, view)
}

// GetChildren lists the children of a post by descending reward, or
// newest first with order=new.
func (h *Handlers) GetChildren(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	start, count, err := page(r)
	if err != nil {
		fail(w, h.logger, err)
		return
	}

	list := h.board.Children
	switch order := r.URL.Query().Get("order"); order {
	case "", "top":
	case "new":
		list = h.board.ChildrenNewest
	default:
		fail(w, h.logger, fmt.Errorf("%w: unknown order %q", board.ErrInvalidInput, order))
		return
	}

	views, err := list(r.Context(), id, start, count)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	respond(w, h.logger, http.StatusOK, views)
}

// CreatePost creates a child of the post.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	parentID := mux.Vars(r)["id"]

	req := writeRequest{ChildrenRights: post.All}
	if err := decode(r, &req); err != nil {
		fail(w, h.logger, err)
		return
	}

	id, err := h.board.CreatePost(r.Context(), parentID, req.Secret, req.Content, req.ChildrenRights)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	respond(w, h.logger, http.StatusCreated, idResponse{ID: id})
}

// EditPost replaces the content and children rights of the post.
func (h *Handlers) EditPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	req := writeRequest{ChildrenRights: post.All}
	if err := decode(r, &req); err != nil {
		fail(w, h.logger, err)
		return
	}

	if err := h.board.EditPost(r.Context(), id, req.Secret, req.Content, req.ChildrenRights); err != nil {
		fail(w, h.logger, err)
		return
	}
	respond(w, h.logger, http.StatusOK, idResponse{ID: id})
}

// RewardPost casts a vote on the post.
func (h *Handlers) RewardPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req rewardRequest
	if err := decode(r, &req); err != nil {
		fail(w, h.logger, err)
		return
	}

	if err := h.board.RewardPost(r.Context(), id, req.Secret, req.Amount); err != nil {
		fail(w, h.logger, err)
		return
	}
	respond(w, h.logger, http.StatusOK, idResponse{ID: id})
}

// Login returns the account root id of a secret.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		fail(w, h.logger, err)
		return
	}

	id, err := h.board.Login(r.Context(), req.Secret)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	respond(w, h.logger, http.StatusOK, idResponse{ID: id})
}

// GetCreated lists the posts of an account, newest first.
func (h *Handlers) GetCreated(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	start, count, err := page(r)
	if err != nil {
		fail(w, h.logger, err)
		return
	}

	views, err := h.board.CreatedBy(r.Context(), hash, start, count)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	respond(w, h.logger, http.StatusOK, views)
}

// GetRewarded lists the posts an account has an active vote on.
func (h *Handlers) GetRewarded(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	start, count, err := page(r)
	if err != nil {
		fail(w, h.logger, err)
		return
	}

	views, err := h.board.RewardedBy(r.Context(), hash, start, count)
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	respond(w, h.logger, http.StatusOK, views)
}

// GetAccount returns the activity summary of an account.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.board.Account(r.Context(), mux.Vars(r)["hash"])
	if err != nil {
		fail(w, h.logger, err)
		return
	}
	respond(w, h.logger, http.StatusOK, account)
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", board.ErrInvalidInput, err)
	}
	return nil
}

// page parses the start and count query parameters.
func page(r *http.Request) (int, int, error) {
	start, count := 0, DefaultPageSize

	query := r.URL.Query()
	if s := query.Get("start"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: start: %w", board.ErrInvalidInput, err)
		}
		start = n
	}
	if s := query.Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: count: %w", board.ErrInvalidInput, err)
		}
		count = n
	}
	return start, count, nil
}
