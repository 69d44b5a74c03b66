package main

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gedex/inflector"
	"go.uber.org/zap"
)

// CatalogAppLabel is the app label of the catalog models.
const CatalogAppLabel = "catalog"

// AdminSite is the registry of the model admins.
type AdminSite struct {
	logger   *zap.Logger
	config   *Config
	clock    Clocker
	service  CatalogServiceProvider
	registry map[string]ModelAdmin
}

// NewAdminSite provides an empty admin site.
func NewAdminSite(logger *zap.Logger, config *Config, clock Clocker, service CatalogServiceProvider) *AdminSite {
	return &AdminSite{
		logger:   logger,
		config:   config,
		clock:    clock,
		service:  service,
		registry: make(map[string]ModelAdmin),
	}
}

// NewCatalogAdminSite provides the admin site with every catalog model registered.
func NewCatalogAdminSite(
	logger *zap.Logger,
	config *Config,
	clock Clocker,
	ids UIDHandler,
	storage CatalogStorage,
	service CatalogServiceProvider,
) *AdminSite {
	site := NewAdminSite(logger, config, clock, service)
	perPage := config.Admin.ListPerPage
	for _, admin := range []ModelAdmin{
		NewGenreAdmin(storage, perPage),
		NewLanguageAdmin(storage, perPage),
		NewAuthorAdmin(storage, service, perPage),
		NewBookAdmin(storage, service, perPage),
		NewBookInstanceAdmin(storage, service, clock, ids, perPage),
	} {
		if err := site.Register(admin); err != nil {
			logger.Fatal("admin: failed to register model", zap.Error(err))
		}
	}
	return site
}

// NewModelOptions derives the names of a model from its type.
func NewModelOptions(appLabel string, model interface{}) *ModelOptions {
	typeName := reflect.TypeOf(model).Name()
	verbose := splitCamelCase(typeName)
	return &ModelOptions{
		AppLabel:          appLabel,
		ModelName:         strings.ToLower(typeName),
		VerboseName:       verbose,
		VerboseNamePlural: inflector.Pluralize(verbose),
		ListDisplay:       []string{"__str__"},
		ListPerPage:       100,
	}
}

// Register adds a model admin. A model can be registered once.
func (s *AdminSite) Register(admin ModelAdmin) error {
	name := admin.Options().ModelName
	if _, ok := s.registry[name]; ok {
		return fmt.Errorf("model %q is already registered", name)
	}
	s.registry[name] = admin
	return nil
}

// ModelAdmin returns the admin of a registered model.
func (s *AdminSite) ModelAdmin(model string) (ModelAdmin, error) {
	admin, ok := s.registry[strings.ToLower(model)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return admin, nil
}

// ModelEntry is a registered model on the admin index.
type ModelEntry struct {
	Name              string `json:"name"`
	VerboseNamePlural string `json:"verbose_name_plural"`
	URL               string `json:"url"`
	AddURL            string `json:"add_url"`
}

// AppEntry groups the models of an app on the admin index.
type AppEntry struct {
	Label  string       `json:"label"`
	Name   string       `json:"name"`
	Models []ModelEntry `json:"models"`
}

// ActionView is an admin log entry as shown to staff users.
type ActionView struct {
	LogEntry
	Action string `json:"action"`
	When   string `json:"when"`
	URL    string `json:"url,omitempty"`
}

// AdminIndex is the landing page of the admin site.
type AdminIndex struct {
	SiteTitle     string       `json:"site_title"`
	Apps          []AppEntry   `json:"apps"`
	RecentActions []ActionView `json:"recent_actions"`
}

// Models returns the registered models sorted by plural name.
func (s *AdminSite) Models() []ModelEntry {
	models := make([]ModelEntry, 0, len(s.registry))
	for _, admin := range s.registry {
		opts := admin.Options()
		models = append(models, ModelEntry{
			Name:              opts.ModelName,
			VerboseNamePlural: capFirst(opts.VerboseNamePlural),
			URL:               opts.URL(),
			AddURL:            opts.ObjectURL("add"),
		})
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].VerboseNamePlural < models[j].VerboseNamePlural
	})
	return models
}

// Index lists the registered models with the latest admin actions.
func (s *AdminSite) Index(ctx context.Context) (*AdminIndex, error) {
	entries, err := s.service.RecentActions(ctx, s.config.Admin.RecentActions)
	if err != nil {
		return nil, err
	}
	return &AdminIndex{
		SiteTitle: s.config.Admin.Realm,
		Apps: []AppEntry{{
			Label:  CatalogAppLabel,
			Name:   capFirst(CatalogAppLabel),
			Models: s.Models(),
		}},
		RecentActions: s.actionViews(entries),
	}, nil
}

// History returns the admin actions on one object, oldest first. The object
// must still exist.
func (s *AdminSite) History(ctx context.Context, model, id string) ([]ActionView, error) {
	admin, err := s.ModelAdmin(model)
	if err != nil {
		return nil, err
	}
	if _, err = admin.Detail(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.service.ObjectHistory(ctx, admin.Options().ContentType(), id)
	if err != nil {
		return nil, err
	}
	return s.actionViews(entries), nil
}

func (s *AdminSite) actionViews(entries []LogEntry) []ActionView {
	now := s.clock.Now()
	views := make([]ActionView, 0, len(entries))
	for _, e := range entries {
		v := ActionView{
			LogEntry: e,
			Action:   e.ActionFlag.String(),
			When:     relativeTime(e.ActionTime, now),
		}
		if e.ActionFlag != ActionDeletion {
			if admin, err := s.ModelAdmin(strings.TrimPrefix(e.ContentType, CatalogAppLabel+".")); err == nil {
				v.URL = admin.Options().ObjectURL(e.ObjectID)
			}
		}
		views = append(views, v)
	}
	return views
}

func relativeTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}
