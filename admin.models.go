package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// modelAdmin holds what every model admin shares.
type modelAdmin struct {
	opts   *ModelOptions
	fields []FieldMeta
}

func (m *modelAdmin) Options() *ModelOptions {
	return m.opts
}

func (m *modelAdmin) columns() []Column {
	cols := columnsOf(m.fields, m.opts.ListDisplay)
	for i := range cols {
		if cols[i].Name == "__str__" {
			cols[i].Label = capFirst(m.opts.VerboseName)
		}
	}
	return cols
}

func (m *modelAdmin) changeList(page, total int, rows []Row, filters []FilterSpec) *ChangeList {
	if rows == nil {
		rows = []Row{}
	}
	if filters == nil {
		filters = []FilterSpec{}
	}
	return &ChangeList{
		Model:             m.opts.ModelName,
		VerboseNamePlural: capFirst(m.opts.VerboseNamePlural),
		Columns:           m.columns(),
		Rows:              rows,
		Filters:           filters,
		Page:              page,
		NumPages:          NumPages(total, m.opts.ListPerPage),
		PerPage:           m.opts.ListPerPage,
		Total:             total,
	}
}

func (m *modelAdmin) row(pk, repr string, cells ...string) Row {
	return Row{PK: pk, Repr: repr, URL: m.opts.ObjectURL(pk), Cells: cells}
}

func (m *modelAdmin) form(pk, repr string, values map[string]FieldView, inlines []InlineView) *ChangeForm {
	if inlines == nil {
		inlines = []InlineView{}
	}
	f := &ChangeForm{
		Model:     m.opts.ModelName,
		PK:        pk,
		Repr:      repr,
		Fieldsets: fieldsetViews(m.fields, m.opts.Fieldsets, values),
		Inlines:   inlines,
	}
	if pk != "" {
		f.HistoryURL = m.opts.ObjectURL(pk) + "/history"
	}
	return f
}

// parseID parses an integer primary key. Malformed keys match no object.
func (m *modelAdmin) parseID(id string) (int64, error) {
	n, err := ParseIntID(id)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", m.opts.VerboseName, id, ErrRecordNotFound)
	}
	return n, nil
}

func (m *modelAdmin) result(flag ActionFlag, pk string, repr fmt.Stringer, object interface{}, changed []string) *ChangeResult {
	return &ChangeResult{
		ObjectID: pk,
		Repr:     repr.String(),
		Message:  changeMessage(flag, changed),
		Object:   object,
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// namedAdmin serves the models made of a single name field.
type namedAdmin[T fmt.Stringer] struct {
	modelAdmin
	idOf   func(T) int64
	nameOf func(T) string
	build  func(id int64, name string) T
	list   func(context.Context, Page) ([]T, int, error)
	get    func(context.Context, int64) (T, error)
	add    func(context.Context, *T) error
	update func(context.Context, T) error
	del    func(context.Context, int64) error
}

type namedForm struct {
	Name string `json:"name"`
}

func newNamedOptions(model interface{}, maxLength, perPage int) modelAdmin {
	opts := NewModelOptions(CatalogAppLabel, model)
	opts.Fieldsets = []Fieldset{{Fields: []string{"name"}}}
	opts.ListPerPage = perPage
	return modelAdmin{
		opts:   opts,
		fields: []FieldMeta{{Name: "name", Label: "Name", Type: "char", Required: true, MaxLength: maxLength}},
	}
}

// NewGenreAdmin provides the admin of genres.
func NewGenreAdmin(storage CatalogStorage, perPage int) ModelAdmin {
	return &namedAdmin[Genre]{
		modelAdmin: newNamedOptions(Genre{}, MaxGenreNameLength, perPage),
		idOf:       func(g Genre) int64 { return g.ID },
		nameOf:     func(g Genre) string { return g.Name },
		build:      func(id int64, name string) Genre { return Genre{ID: id, Name: name} },
		list:       storage.ListGenres,
		get:        storage.GetGenre,
		add:        storage.AddGenre,
		update:     storage.UpdateGenre,
		del:        storage.DeleteGenre,
	}
}

// NewLanguageAdmin provides the admin of languages.
func NewLanguageAdmin(storage CatalogStorage, perPage int) ModelAdmin {
	return &namedAdmin[Language]{
		modelAdmin: newNamedOptions(Language{}, MaxLanguageNameLength, perPage),
		idOf:       func(l Language) int64 { return l.ID },
		nameOf:     func(l Language) string { return l.Name },
		build:      func(id int64, name string) Language { return Language{ID: id, Name: name} },
		list:       storage.ListLanguages,
		get:        storage.GetLanguage,
		add:        storage.AddLanguage,
		update:     storage.UpdateLanguage,
		del:        storage.DeleteLanguage,
	}
}

func (a *namedAdmin[T]) ChangeList(ctx context.Context, q ChangeListQuery) (*ChangeList, error) {
	if err := rejectParams(q); err != nil {
		return nil, err
	}
	page, p, err := pagedQuery(q, a.opts.ListPerPage)
	if err != nil {
		return nil, err
	}
	records, total, err := a.list(ctx, p)
	if err != nil {
		return nil, err
	}
	if err = checkPage(page, total, a.opts.ListPerPage); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, a.row(formatID(a.idOf(r)), r.String(), r.String()))
	}
	return a.changeList(page, total, rows, nil), nil
}

func (a *namedAdmin[T]) Detail(ctx context.Context, id string) (*ChangeForm, error) {
	n, err := a.parseID(id)
	if err != nil {
		return nil, err
	}
	record, err := a.get(ctx, n)
	if err != nil {
		return nil, err
	}
	return a.form(id, record.String(), map[string]FieldView{"name": textView(a.nameOf(record))}, nil), nil
}

func (a *namedAdmin[T]) AddForm(_ context.Context) (*ChangeForm, error) {
	return a.form("", "", map[string]FieldView{"name": textView("")}, nil), nil
}

func (a *namedAdmin[T]) validate(payload []byte) (namedForm, error) {
	var form namedForm
	if err := decodeForm(payload, &form); err != nil {
		return form, err
	}
	ve := ValidationErrors{}
	ve.RequireString("name", &form.Name, a.fields[0].MaxLength)
	return form, ve.Err()
}

func (a *namedAdmin[T]) Add(ctx context.Context, payload []byte) (*ChangeResult, error) {
	form, err := a.validate(payload)
	if err != nil {
		return nil, err
	}
	record := a.build(0, form.Name)
	if err = a.add(ctx, &record); err != nil {
		return nil, err
	}
	return a.result(ActionAddition, formatID(a.idOf(record)), record, record, nil), nil
}

func (a *namedAdmin[T]) Change(ctx context.Context, id string, payload []byte) (*ChangeResult, error) {
	n, err := a.parseID(id)
	if err != nil {
		return nil, err
	}
	before, err := a.get(ctx, n)
	if err != nil {
		return nil, err
	}
	form, err := a.validate(payload)
	if err != nil {
		return nil, err
	}
	after := a.build(n, form.Name)
	if err = a.update(ctx, after); err != nil {
		return nil, err
	}
	changed := changedFields(a.fields,
		map[string]string{"name": a.nameOf(before)},
		map[string]string{"name": a.nameOf(after)})
	return a.result(ActionChange, id, after, after, changed), nil
}

func (a *namedAdmin[T]) Delete(ctx context.Context, id string) (*ChangeResult, error) {
	n, err := a.parseID(id)
	if err != nil {
		return nil, err
	}
	record, err := a.get(ctx, n)
	if err != nil {
		return nil, err
	}
	if err = a.del(ctx, n); err != nil {
		return nil, err
	}
	return a.result(ActionDeletion, id, record, record, nil), nil
}

var authorFields = []FieldMeta{
	{Name: "first_name", Label: "First name", Type: "char", Required: true, MaxLength: MaxAuthorNameLength},
	{Name: "last_name", Label: "Last name", Type: "char", Required: true, MaxLength: MaxAuthorNameLength},
	{Name: "date_of_birth", Label: "Date of birth", Type: "date"},
	{Name: "date_of_death", Label: "Died", Type: "date"},
}

// bookInlineFields are the book columns shown on an author page.
var bookInlineFields = []string{"title", "summary", "isbn", "genre", "language"}

// AuthorAdmin only exposes the author names. Dates are kept as stored.
type AuthorAdmin struct {
	modelAdmin
	storage CatalogStorage
	service CatalogServiceProvider
}

type authorForm struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// NewAuthorAdmin provides the admin of authors.
func NewAuthorAdmin(storage CatalogStorage, service CatalogServiceProvider, perPage int) *AuthorAdmin {
	opts := NewModelOptions(CatalogAppLabel, Author{})
	opts.ListDisplay = []string{"last_name", "first_name"}
	opts.Fieldsets = []Fieldset{{Fields: []string{"first_name", "last_name"}}}
	opts.Inlines = []InlineOptions{{Model: "book", Fields: bookInlineFields, Extra: 0}}
	opts.ListPerPage = perPage
	return &AuthorAdmin{
		modelAdmin: modelAdmin{opts: opts, fields: authorFields},
		storage:    storage,
		service:    service,
	}
}

func (a *AuthorAdmin) ChangeList(ctx context.Context, q ChangeListQuery) (*ChangeList, error) {
	if err := rejectParams(q); err != nil {
		return nil, err
	}
	page, p, err := pagedQuery(q, a.opts.ListPerPage)
	if err != nil {
		return nil, err
	}
	authors, total, err := a.storage.ListAuthors(ctx, p)
	if err != nil {
		return nil, err
	}
	if err = checkPage(page, total, a.opts.ListPerPage); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(authors))
	for _, au := range authors {
		rows = append(rows, a.row(formatID(au.ID), au.String(), displayText(au.LastName), displayText(au.FirstName)))
	}
	return a.changeList(page, total, rows, nil), nil
}

func (a *AuthorAdmin) values(au Author) map[string]FieldView {
	return map[string]FieldView{
		"first_name":    textView(au.FirstName),
		"last_name":     textView(au.LastName),
		"date_of_birth": {Value: dateValue(au.DateOfBirth), Display: displayDate(au.DateOfBirth)},
		"date_of_death": {Value: dateValue(au.DateOfDeath), Display: displayDate(au.DateOfDeath)},
	}
}

func (a *AuthorAdmin) Detail(ctx context.Context, id string) (*ChangeForm, error) {
	n, err := a.parseID(id)
	if err != nil {
		return nil, err
	}
	author, err := a.storage.GetAuthor(ctx, n)
	if err != nil {
		return nil, err
	}
	books, err := a.storage.ListBooksByAuthor(ctx, n)
	if err != nil {
		return nil, err
	}
	if err = a.service.LoadBooks(ctx, books); err != nil {
		return nil, err
	}
	return a.form(id, author.String(), a.values(author), []InlineView{bookInline(books)}), nil
}

// bookInline renders the books of an author as tabular rows.
func bookInline(books []Book) InlineView {
	opts := NewModelOptions(CatalogAppLabel, Book{})
	inline := InlineView{
		Model:             opts.ModelName,
		VerboseNamePlural: capFirst(opts.VerboseNamePlural),
		Columns:           columnsOf(bookFields, bookInlineFields),
		Rows:              make([]Row, 0, len(books)),
	}
	for _, b := range books {
		names := make([]string, 0, len(b.Genres))
		for _, g := range b.Genres {
			names = append(names, g.Name)
		}
		language := EmptyValueDisplay
		if b.Language != nil {
			language = b.Language.Name
		}
		inline.Rows = append(inline.Rows, Row{
			PK:    formatID(b.ID),
			Repr:  b.String(),
			URL:   opts.ObjectURL(formatID(b.ID)),
			Cells: []string{b.Title, b.Summary, b.ISBN, displayText(strings.Join(names, ", ")), language},
		})
	}
	return inline
}

func (a *AuthorAdmin) AddForm(_ context.Context) (*ChangeForm, error) {
	return a.form("", "", a.values(Author{}), nil), nil
}

func (a *AuthorAdmin) validate(payload []byte) (authorForm, error) {
	var form authorForm
	if err := decodeForm(payload, &form); err != nil {
		return form, err
	}
	ve := ValidationErrors{}
	ve.RequireString("first_name", &form.FirstName, MaxAuthorNameLength)
	ve.RequireString("last_name", &form.LastName, MaxAuthorNameLength)
	return form, ve.Err()
}

func (a *AuthorAdmin) Add(ctx context.Context, payload []byte) (*ChangeResult, error) {
	form, err := a.validate(payload)
	if err != nil {
		return nil, err
	}
	author := Author{FirstName: form.FirstName, LastName: form.LastName}
	if err = a.storage.AddAuthor(ctx, &author); err != nil {
		return nil, err
	}
	return a.result(ActionAddition, formatID(author.ID), author, author, nil), nil
}

func (a *AuthorAdmin) Change(ctx context.Context, id string, payload []byte) (*ChangeResult, error) {
	n, err := a.parseID(id)
	if err != nil {
		return nil, err
	}
	author, err := a.storage.GetAuthor(ctx, n)
	if err != nil {
		return nil, err
	}
	form, err := a.validate(payload)
	if err != nil {
		return nil, err
	}
	before := map[string]string{"first_name": author.FirstName, "last_name": author.LastName}
	author.FirstName, author.LastName = form.FirstName, form.LastName
	if err = a.storage.UpdateAuthor(ctx, author); err != nil {
		return nil, err
	}
	after := map[string]string{"first_name": author.FirstName, "last_name": author.LastName}
	return a.result(ActionChange, id, author, author, changedFields(a.fields, before, after)), nil
}

func (a *AuthorAdmin) Delete(ctx context.Context, id string) (*ChangeResult, error) {
	n, err := a.parseID(id)
	if err != nil {
		return nil, err
	}
	author, err := a.storage.GetAuthor(ctx, n)
	if err != nil {
		return nil, err
	}
	if err = a.storage.DeleteAuthor(ctx, n); err != nil {
		return nil, err
	}
	return a.result(ActionDeletion, id, author, author, nil), nil
}

// uniqueError turns a unique violation into a form error on field.
func uniqueError(err error, field, message string) error {
	if errors.Is(err, ErrUniqueViolation) {
		return ValidationErrors{field: {message}}
	}
	if errors.Is(err, ErrInvalidReference) {
		return ValidationErrors{NonFieldErrors: {"A related record no longer exists."}}
	}
	return err
}
