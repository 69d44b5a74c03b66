package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupAdminRoutes injects the admin site endpoints. All of them require a staff user.
func (api *APIHandler) SetupAdminRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	staff := func(h httprouter.Handle) httprouter.Handle {
		return m.public(api.BasicAuthMiddleware(true)(h))
	}
	router.GET("/admin", staff(api.AdminIndex))
	router.GET("/admin/history", staff(api.AdminRecentActions))
	router.GET("/admin/catalog/:model", staff(api.AdminChangeList))
	router.POST("/admin/catalog/:model", staff(api.AdminAdd))
	router.GET("/admin/catalog/:model/:id", staff(api.AdminDetail))
	router.PUT("/admin/catalog/:model/:id", staff(api.AdminChange))
	router.DELETE("/admin/catalog/:model/:id", staff(api.AdminDelete))
	router.GET("/admin/catalog/:model/:id/history", staff(api.AdminHistory))
	return router
}
