package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrUnknownModel  = errors.New("model is not registered")
	ErrInvalidFilter = errors.New("invalid filter parameters")
)

// EmptyValueDisplay is shown for null and blank values.
const EmptyValueDisplay = "-"

// PageParam is the 1-based page number parameter of changelists.
const PageParam = "p"

// Fieldset groups fields of a change form. A blank name is an untitled group.
type Fieldset struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// InlineOptions declares related records shown on a change form.
type InlineOptions struct {
	Model  string   `json:"model"`
	Fields []string `json:"fields"`
	Extra  int      `json:"extra"`
}

// ModelOptions is the declarative admin configuration of a model.
type ModelOptions struct {
	AppLabel          string          `json:"app_label"`
	ModelName         string          `json:"model_name"`
	VerboseName       string          `json:"verbose_name"`
	VerboseNamePlural string          `json:"verbose_name_plural"`
	ListDisplay       []string        `json:"list_display"`
	Fieldsets         []Fieldset      `json:"fieldsets"`
	ListFilter        []string        `json:"list_filter"`
	Inlines           []InlineOptions `json:"inlines"`
	ListPerPage       int             `json:"list_per_page"`
}

// ContentType identifies the model in admin log entries.
func (o *ModelOptions) ContentType() string {
	return o.AppLabel + "." + o.ModelName
}

// URL returns the changelist url of the model.
func (o *ModelOptions) URL() string {
	return "/admin/" + o.AppLabel + "/" + o.ModelName
}

// ObjectURL returns the change url of an object of the model.
func (o *ModelOptions) ObjectURL(pk string) string {
	return o.URL() + "/" + url.PathEscape(pk)
}

// FieldMeta describes a model field for forms and list headers.
type FieldMeta struct {
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	Type      string   `json:"type"`
	Required  bool     `json:"required"`
	MaxLength int      `json:"max_length,omitempty"`
	Choices   []Choice `json:"choices,omitempty"`
}

// Column is a changelist or inline header.
type Column struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Row is a changelist or inline line. Cells follow the columns order.
type Row struct {
	PK    string   `json:"pk"`
	Repr  string   `json:"repr"`
	URL   string   `json:"url"`
	Cells []string `json:"cells"`
}

// FilterChoice is one selectable value of a list filter.
type FilterChoice struct {
	Label    string `json:"label"`
	Query    string `json:"query"`
	Selected bool   `json:"selected"`
}

// FilterSpec is a list filter with its choices.
type FilterSpec struct {
	Field   string         `json:"field"`
	Title   string         `json:"title"`
	Choices []FilterChoice `json:"choices"`
}

// ChangeListQuery holds the changelist request parameters.
type ChangeListQuery struct {
	Params url.Values
}

// Page returns the requested 1-based page number.
func (q ChangeListQuery) Page() (int, error) {
	v := q.Params.Get(PageParam)
	if v == "" {
		return 1, nil
	}
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 {
		return 0, fmt.Errorf("%w: page %q", ErrInvalidFilter, v)
	}
	return p, nil
}

// ChangeList is a page of a model list.
type ChangeList struct {
	Model             string       `json:"model"`
	VerboseNamePlural string       `json:"verbose_name_plural"`
	Columns           []Column     `json:"columns"`
	Rows              []Row        `json:"rows"`
	Filters           []FilterSpec `json:"filters"`
	Page              int          `json:"page"`
	NumPages          int          `json:"num_pages"`
	PerPage           int          `json:"per_page"`
	Total             int          `json:"total"`
}

// FieldView is a field of a change form with its current value.
type FieldView struct {
	FieldMeta
	Value   interface{} `json:"value"`
	Display string      `json:"display"`
}

// FieldsetView is a fieldset of a change form.
type FieldsetView struct {
	Name   string      `json:"name"`
	Fields []FieldView `json:"fields"`
}

// InlineView lists related records on a change form.
type InlineView struct {
	Model             string   `json:"model"`
	VerboseNamePlural string   `json:"verbose_name_plural"`
	Columns           []Column `json:"columns"`
	Rows              []Row    `json:"rows"`
	Extra             int      `json:"extra"`
}

// ChangeForm is the detail of an object, or a blank add form when PK is empty.
type ChangeForm struct {
	Model      string         `json:"model"`
	PK         string         `json:"pk"`
	Repr       string         `json:"repr"`
	Fieldsets  []FieldsetView `json:"fieldsets"`
	Inlines    []InlineView   `json:"inlines"`
	HistoryURL string         `json:"history_url,omitempty"`
}

// ChangeResult describes an object written through the admin.
type ChangeResult struct {
	ObjectID string      `json:"pk"`
	Repr     string      `json:"repr"`
	Message  string      `json:"message"`
	Object   interface{} `json:"object"`
}

// ModelAdmin serves the admin operations of one model.
type ModelAdmin interface {
	Options() *ModelOptions
	ChangeList(ctx context.Context, q ChangeListQuery) (*ChangeList, error)
	Detail(ctx context.Context, id string) (*ChangeForm, error)
	AddForm(ctx context.Context) (*ChangeForm, error)
	Add(ctx context.Context, payload []byte) (*ChangeResult, error)
	Change(ctx context.Context, id string, payload []byte) (*ChangeResult, error)
	Delete(ctx context.Context, id string) (*ChangeResult, error)
}

// splitCamelCase turns a type name into lower case words.
func splitCamelCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// capFirst upper cases the first letter of s.
func capFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// fieldLabel derives the label of a field without an explicit one.
func fieldLabel(name string) string {
	return capFirst(strings.ReplaceAll(name, "_", " "))
}

func columnsOf(fields []FieldMeta, names []string) []Column {
	byName := make(map[string]FieldMeta, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		label := fieldLabel(n)
		if f, ok := byName[n]; ok {
			label = f.Label
		}
		cols = append(cols, Column{Name: n, Label: label})
	}
	return cols
}

func fieldsetViews(fields []FieldMeta, sets []Fieldset, values map[string]FieldView) []FieldsetView {
	byName := make(map[string]FieldMeta, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	views := make([]FieldsetView, 0, len(sets))
	for _, set := range sets {
		fv := FieldsetView{Name: set.Name}
		for _, name := range set.Fields {
			v := values[name]
			v.FieldMeta = byName[name]
			fv.Fields = append(fv.Fields, v)
		}
		views = append(views, fv)
	}
	return views
}

func displayText(s string) string {
	if s == "" {
		return EmptyValueDisplay
	}
	return s
}

func displayStringer(s fmt.Stringer, ok bool) string {
	if !ok {
		return EmptyValueDisplay
	}
	return displayText(s.String())
}

func displayDate(d Date) string {
	return displayText(d.String())
}

func displayStatus(s LoanStatus) string {
	return displayText(s.Label())
}

func dateValue(d Date) interface{} {
	if !d.Valid {
		return nil
	}
	return d.String()
}

func refValue(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func textView(value string) FieldView {
	return FieldView{Value: value, Display: displayText(value)}
}

// changedFields lists the labels of the fields whose values differ.
func changedFields(fields []FieldMeta, before, after map[string]string) []string {
	var changed []string
	for _, f := range fields {
		if b, ok := before[f.Name]; ok && b != after[f.Name] {
			changed = append(changed, f.Label)
		}
	}
	return changed
}

// changeMessage renders the message stored with admin log entries.
func changeMessage(flag ActionFlag, changed []string) string {
	switch flag {
	case ActionAddition:
		return "Added."
	case ActionDeletion:
		return "Deleted."
	}
	switch len(changed) {
	case 0:
		return "No fields changed."
	case 1:
		return "Changed " + changed[0] + "."
	}
	return "Changed " + strings.Join(changed[:len(changed)-1], ", ") + " and " + changed[len(changed)-1] + "."
}

// pagedQuery returns the storage window of a changelist page.
func pagedQuery(q ChangeListQuery, perPage int) (int, Page, error) {
	page, err := q.Page()
	if err != nil {
		return 0, Page{}, err
	}
	return page, Page{Offset: (page - 1) * perPage, Limit: perPage}, nil
}

// checkPage rejects pages past the last one. The first page always exists.
func checkPage(page, total, perPage int) error {
	if page > NumPages(total, perPage) {
		return fmt.Errorf("%w: page %d", ErrInvalidFilter, page)
	}
	return nil
}

// rejectParams fails on query parameters other than the page and the allowed ones.
func rejectParams(q ChangeListQuery, allowed ...string) error {
	for k := range q.Params {
		if k == PageParam {
			continue
		}
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: unknown parameter %q", ErrInvalidFilter, k)
		}
	}
	return nil
}

func decodeForm(payload []byte, form interface{}) error {
	if len(payload) == 0 {
		return ErrInvalidRequestBody
	}
	if err := jsonCodec.Unmarshal(payload, form); err != nil {
		return errors.Join(ErrInvalidRequestBody, err)
	}
	return nil
}
