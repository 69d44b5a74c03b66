package main

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// CatalogPageParam is the 1-based page number parameter of public lists.
const CatalogPageParam = "page"

// pageFromQuery reads the page number of a public list. Missing means first.
func pageFromQuery(r *http.Request) (int, error) {
	v := r.URL.Query().Get(CatalogPageParam)
	if v == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(v)
	if err != nil || page < 1 {
		return 0, ErrInvalidPage
	}
	return page, nil
}

// GetBooks godoc
// @Summary      List books
// @Tags         catalog
// @Produce      json
// @Param        page query int false "page number"
// @Success      200 {object} APIResponse
// @Failure      400 {object} APIError
// @Router       /catalog/books [get]
func (api *APIHandler) GetBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, err := pageFromQuery(r)
	if err != nil {
		api.sendError(w, r, err, "failed to get books")
		return
	}
	view, err := api.service.ListBooks(r.Context(), page)
	if err != nil {
		api.sendError(w, r, err, "failed to get books", zap.Int("page", page))
		return
	}
	api.sendData(w, r, http.StatusOK, "Books fetched successfully.", &view.Total, view)
}

// GetBook godoc
// @Summary      Show a book with its copies
// @Tags         catalog
// @Produce      json
// @Param        id path int true "book id"
// @Success      200 {object} APIResponse
// @Failure      404 {object} APIError
// @Router       /catalog/book/{id} [get]
func (api *APIHandler) GetBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := ParseIntID(ps.ByName("id"))
	if err != nil {
		api.sendError(w, r, ErrRecordNotFound, "book does not exist", zap.String("book.id", ps.ByName("id")))
		return
	}
	view, err := api.service.GetBook(r.Context(), id)
	if err != nil {
		api.sendError(w, r, err, "failed to get book", zap.Int64("book.id", id))
		return
	}
	api.sendData(w, r, http.StatusOK, "Book fetched successfully.", nil, view)
}

// GetAuthors godoc
// @Summary      List authors
// @Tags         catalog
// @Produce      json
// @Param        page query int false "page number"
// @Success      200 {object} APIResponse
// @Failure      400 {object} APIError
// @Router       /catalog/authors [get]
func (api *APIHandler) GetAuthors(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, err := pageFromQuery(r)
	if err != nil {
		api.sendError(w, r, err, "failed to get authors")
		return
	}
	view, err := api.service.ListAuthors(r.Context(), page)
	if err != nil {
		api.sendError(w, r, err, "failed to get authors", zap.Int("page", page))
		return
	}
	api.sendData(w, r, http.StatusOK, "Authors fetched successfully.", &view.Total, view)
}

// GetAuthor godoc
// @Summary      Show an author with their books
// @Tags         catalog
// @Produce      json
// @Param        id path int true "author id"
// @Success      200 {object} APIResponse
// @Failure      404 {object} APIError
// @Router       /catalog/author/{id} [get]
func (api *APIHandler) GetAuthor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := ParseIntID(ps.ByName("id"))
	if err != nil {
		api.sendError(w, r, ErrRecordNotFound, "author does not exist", zap.String("author.id", ps.ByName("id")))
		return
	}
	view, err := api.service.GetAuthor(r.Context(), id)
	if err != nil {
		api.sendError(w, r, err, "failed to get author", zap.Int64("author.id", id))
		return
	}
	api.sendData(w, r, http.StatusOK, "Author fetched successfully.", nil, view)
}

// GetMyBooks godoc
// @Summary      List the copies on loan to the current user
// @Tags         catalog
// @Produce      json
// @Security     BasicAuth
// @Success      200 {object} APIResponse
// @Failure      401 {object} APIError
// @Router       /catalog/mybooks [get]
func (api *APIHandler) GetMyBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		api.sendError(w, r, ErrInvalidCredentials, "authentication required")
		return
	}
	loans, err := api.service.BorrowedBy(r.Context(), user.ID)
	if err != nil {
		api.sendError(w, r, err, "failed to get borrowed books", zap.Int64("user.id", user.ID))
		return
	}
	total := len(loans)
	api.sendData(w, r, http.StatusOK, "Borrowed books fetched successfully.", &total, loans)
}
