package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupCatalogRoutes injects the public catalog endpoints.
func (api *APIHandler) SetupCatalogRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	router.GET("/catalog/books", m.public(api.GetBooks))
	router.GET("/catalog/book/:id", m.public(api.GetBook))
	router.GET("/catalog/authors", m.public(api.GetAuthors))
	router.GET("/catalog/author/:id", m.public(api.GetAuthor))
	router.GET("/catalog/mybooks", m.public(api.BasicAuthMiddleware(false)(api.GetMyBooks)))
	return router
}
