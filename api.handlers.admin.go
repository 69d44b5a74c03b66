package main

import (
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// maxAdminPayload bounds the size of admin form submissions.
const maxAdminPayload = 1 << 20

// AdminIndex godoc
// @Summary      Admin index with the registered models and recent actions
// @Tags         admin
// @Produce      json
// @Security     BasicAuth
// @Success      200 {object} APIResponse
// @Router       /admin [get]
func (api *APIHandler) AdminIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	index, err := api.site.Index(r.Context())
	if err != nil {
		api.sendError(w, r, err, "failed to get admin index")
		return
	}
	api.sendData(w, r, http.StatusOK, "Admin index fetched successfully.", nil, index)
}

// AdminRecentActions godoc
// @Summary      Latest admin actions
// @Tags         admin
// @Produce      json
// @Security     BasicAuth
// @Success      200 {object} APIResponse
// @Router       /admin/history [get]
func (api *APIHandler) AdminRecentActions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	index, err := api.site.Index(r.Context())
	if err != nil {
		api.sendError(w, r, err, "failed to get recent actions")
		return
	}
	total := len(index.RecentActions)
	api.sendData(w, r, http.StatusOK, "Recent actions fetched successfully.", &total, index.RecentActions)
}

// AdminChangeList godoc
// @Summary      Paged and filtered list of a model
// @Tags         admin
// @Produce      json
// @Security     BasicAuth
// @Param        model path string true "model name"
// @Param        p query int false "page number"
// @Success      200 {object} APIResponse
// @Failure      400 {object} APIError
// @Failure      404 {object} APIError
// @Router       /admin/catalog/{model} [get]
func (api *APIHandler) AdminChangeList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	model := ps.ByName("model")
	admin, err := api.site.ModelAdmin(model)
	if err != nil {
		api.sendError(w, r, err, "unknown admin model", zap.String("admin.model", model))
		return
	}
	api.extendWriteDeadline(w, r)
	cl, err := admin.ChangeList(r.Context(), ChangeListQuery{Params: r.URL.Query()})
	if err != nil {
		api.sendError(w, r, err, "failed to get changelist", zap.String("admin.model", model))
		return
	}
	api.sendData(w, r, http.StatusOK, "Changelist fetched successfully.", &cl.Total, cl)
}

// AdminDetail godoc
// @Summary      Change form of an object, or the blank add form for the `add` id
// @Tags         admin
// @Produce      json
// @Security     BasicAuth
// @Param        model path string true "model name"
// @Param        id path string true "object id"
// @Success      200 {object} APIResponse
// @Failure      404 {object} APIError
// @Router       /admin/catalog/{model}/{id} [get]
func (api *APIHandler) AdminDetail(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	model, id := ps.ByName("model"), ps.ByName("id")
	admin, err := api.site.ModelAdmin(model)
	if err != nil {
		api.sendError(w, r, err, "unknown admin model", zap.String("admin.model", model))
		return
	}
	var form *ChangeForm
	if id == "add" {
		form, err = admin.AddForm(r.Context())
	} else {
		form, err = admin.Detail(r.Context(), id)
	}
	if err != nil {
		api.sendError(w, r, err, "failed to get change form", zap.String("admin.model", model), zap.String("admin.object", id))
		return
	}
	api.sendData(w, r, http.StatusOK, "Change form fetched successfully.", nil, form)
}

// AdminHistory godoc
// @Summary      Admin actions on one object, oldest first
// @Tags         admin
// @Produce      json
// @Security     BasicAuth
// @Param        model path string true "model name"
// @Param        id path string true "object id"
// @Success      200 {object} APIResponse
// @Failure      404 {object} APIError
// @Router       /admin/catalog/{model}/{id}/history [get]
func (api *APIHandler) AdminHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	model, id := ps.ByName("model"), ps.ByName("id")
	history, err := api.site.History(r.Context(), model, id)
	if err != nil {
		api.sendError(w, r, err, "failed to get object history", zap.String("admin.model", model), zap.String("admin.object", id))
		return
	}
	total := len(history)
	api.sendData(w, r, http.StatusOK, "History fetched successfully.", &total, history)
}

// AdminAdd godoc
// @Summary      Create an object
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Param        model path string true "model name"
// @Success      201 {object} APIResponse
// @Failure      400 {object} APIError
// @Router       /admin/catalog/{model} [post]
func (api *APIHandler) AdminAdd(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	api.adminWrite(w, r, ps, ActionAddition)
}

// AdminChange godoc
// @Summary      Update an object
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BasicAuth
// @Param        model path string true "model name"
// @Param        id path string true "object id"
// @Success      200 {object} APIResponse
// @Failure      400 {object} APIError
// @Failure      404 {object} APIError
// @Router       /admin/catalog/{model}/{id} [put]
func (api *APIHandler) AdminChange(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	api.adminWrite(w, r, ps, ActionChange)
}

// AdminDelete godoc
// @Summary      Delete an object
// @Tags         admin
// @Produce      json
// @Security     BasicAuth
// @Param        model path string true "model name"
// @Param        id path string true "object id"
// @Success      200 {object} APIResponse
// @Failure      404 {object} APIError
// @Failure      409 {object} APIError
// @Router       /admin/catalog/{model}/{id} [delete]
func (api *APIHandler) AdminDelete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	api.adminWrite(w, r, ps, ActionDeletion)
}

// adminWrite runs an add, change or delete then records it in the admin log.
func (api *APIHandler) adminWrite(w http.ResponseWriter, r *http.Request, ps httprouter.Params, flag ActionFlag) {
	model, id := ps.ByName("model"), ps.ByName("id")
	fields := []zap.Field{zap.String("admin.model", model), zap.String("admin.action", flag.String())}
	if id != "" {
		fields = append(fields, zap.String("admin.object", id))
	}
	message := "failed to " + adminVerb(flag) + " object"

	admin, err := api.site.ModelAdmin(model)
	if err != nil {
		api.sendError(w, r, err, "unknown admin model", fields...)
		return
	}
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		api.sendError(w, r, ErrInvalidCredentials, "authentication required", fields...)
		return
	}

	var payload []byte
	if flag != ActionDeletion {
		if r.Body == nil || r.Body == http.NoBody {
			api.sendError(w, r, ErrInvalidRequestBody, message, fields...)
			return
		}
		payload, err = io.ReadAll(io.LimitReader(r.Body, maxAdminPayload))
		if err != nil {
			api.sendError(w, r, ErrInvalidRequestBody, message, append(fields, zap.Error(err))...)
			return
		}
	}

	var result *ChangeResult
	switch flag {
	case ActionAddition:
		result, err = admin.Add(r.Context(), payload)
	case ActionChange:
		result, err = admin.Change(r.Context(), id, payload)
	default:
		result, err = admin.Delete(r.Context(), id)
	}
	if err != nil {
		api.sendError(w, r, err, message, fields...)
		return
	}

	entry := LogEntry{
		ContentType:   admin.Options().ContentType(),
		ObjectID:      result.ObjectID,
		ObjectRepr:    result.Repr,
		ActionFlag:    flag,
		ChangeMessage: result.Message,
	}
	if err = api.service.RecordChange(r.Context(), user, entry); err != nil {
		// the write itself succeeded so the client still gets its result.
		api.logger.Error("failed to record admin action",
			append(fields, zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)), zap.Error(err))...)
	}

	status := http.StatusOK
	if flag == ActionAddition {
		status = http.StatusCreated
	}
	api.logger.Info("admin object "+adminVerb(flag)+"d", append(fields,
		zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
		zap.String("admin.pk", result.ObjectID),
		zap.String("user.name", user.Username),
	)...)
	api.sendData(w, r, status, result.Message, nil, result)
}

func adminVerb(flag ActionFlag) string {
	switch flag {
	case ActionAddition:
		return "create"
	case ActionDeletion:
		return "delete"
	}
	return "update"
}
