package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var bookFields = []FieldMeta{
	{Name: "title", Label: "Title", Type: "char", Required: true, MaxLength: MaxTitleLength},
	{Name: "author", Label: "Author", Type: "foreign_key", Required: true},
	{Name: "summary", Label: "Summary", Type: "text", Required: true, MaxLength: MaxSummaryLength},
	{Name: "isbn", Label: "ISBN", Type: "char", Required: true, MaxLength: MaxISBNLength},
	{Name: "genre", Label: "Genre", Type: "many_to_many", Required: true},
	{Name: "language", Label: "Language", Type: "foreign_key", Required: true},
}

// instanceInlineFields are the copy columns shown on a book page.
var instanceInlineFields = []string{"id", "borrower", "imprint", "due_back", "status"}

const invalidChoice = "Select a valid choice. That choice is not one of the available choices."

// BookAdmin lists books with their author and first genres, and shows
// their copies on the change form.
type BookAdmin struct {
	modelAdmin
	storage CatalogStorage
	service CatalogServiceProvider
}

type bookForm struct {
	Title    string  `json:"title"`
	Author   *int64  `json:"author"`
	Summary  string  `json:"summary"`
	ISBN     string  `json:"isbn"`
	Genre    []int64 `json:"genre"`
	Language *int64  `json:"language"`
}

// NewBookAdmin provides the admin of books.
func NewBookAdmin(storage CatalogStorage, service CatalogServiceProvider, perPage int) *BookAdmin {
	opts := NewModelOptions(CatalogAppLabel, Book{})
	opts.ListDisplay = []string{"title", "author", "display_genre"}
	opts.Fieldsets = []Fieldset{{Fields: []string{"title", "author", "summary", "isbn", "genre", "language"}}}
	opts.Inlines = []InlineOptions{{Model: "bookinstance", Fields: instanceInlineFields, Extra: 0}}
	opts.ListPerPage = perPage
	fields := append([]FieldMeta{}, bookFields...)
	return &BookAdmin{
		modelAdmin: modelAdmin{opts: opts, fields: append(fields, FieldMeta{Name: "display_genre", Label: "Genre"})},
		storage:    storage,
		service:    service,
	}
}

func (a *BookAdmin) ChangeList(ctx context.Context, q ChangeListQuery) (*ChangeList, error) {
	if err := rejectParams(q); err != nil {
		return nil, err
	}
	page, p, err := pagedQuery(q, a.opts.ListPerPage)
	if err != nil {
		return nil, err
	}
	books, total, err := a.storage.ListBooks(ctx, p)
	if err != nil {
		return nil, err
	}
	if err = checkPage(page, total, a.opts.ListPerPage); err != nil {
		return nil, err
	}
	if err = a.service.LoadBooks(ctx, books); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(books))
	for _, b := range books {
		rows = append(rows, a.row(formatID(b.ID), b.String(),
			displayText(b.Title),
			displayStringer(b.Author, b.Author != nil),
			displayText(b.DisplayGenre()),
		))
	}
	return a.changeList(page, total, rows, nil), nil
}

// choices loads the selectable authors, genres and languages.
func (a *BookAdmin) choices(ctx context.Context) (map[string][]Choice, error) {
	authors, _, err := a.storage.ListAuthors(ctx, Page{})
	if err != nil {
		return nil, err
	}
	genres, _, err := a.storage.ListGenres(ctx, Page{})
	if err != nil {
		return nil, err
	}
	languages, _, err := a.storage.ListLanguages(ctx, Page{})
	if err != nil {
		return nil, err
	}
	choices := map[string][]Choice{"author": {}, "genre": {}, "language": {}}
	for _, au := range authors {
		choices["author"] = append(choices["author"], Choice{Value: formatID(au.ID), Label: au.String()})
	}
	for _, g := range genres {
		choices["genre"] = append(choices["genre"], Choice{Value: formatID(g.ID), Label: g.String()})
	}
	for _, l := range languages {
		choices["language"] = append(choices["language"], Choice{Value: formatID(l.ID), Label: l.String()})
	}
	return choices, nil
}

func (a *BookAdmin) values(b Book) map[string]FieldView {
	genreIDs := b.GenreIDs
	if genreIDs == nil {
		genreIDs = []int64{}
	}
	names := make([]string, 0, len(b.Genres))
	for _, g := range b.Genres {
		names = append(names, g.Name)
	}
	return map[string]FieldView{
		"title":    textView(b.Title),
		"author":   {Value: refValue(b.AuthorID), Display: displayStringer(b.Author, b.Author != nil)},
		"summary":  textView(b.Summary),
		"isbn":     textView(b.ISBN),
		"genre":    {Value: genreIDs, Display: displayText(strings.Join(names, ", "))},
		"language": {Value: refValue(b.LanguageID), Display: displayStringer(b.Language, b.Language != nil)},
	}
}

func (a *BookAdmin) changeForm(ctx context.Context, pk string, b Book, inlines []InlineView) (*ChangeForm, error) {
	choices, err := a.choices(ctx)
	if err != nil {
		return nil, err
	}
	f := a.form(pk, b.String(), a.values(b), inlines)
	for i := range f.Fieldsets {
		for j := range f.Fieldsets[i].Fields {
			if c, ok := choices[f.Fieldsets[i].Fields[j].Name]; ok {
				f.Fieldsets[i].Fields[j].Choices = c
			}
		}
	}
	return f, nil
}

func (a *BookAdmin) Detail(ctx context.Context, id string) (*ChangeForm, error) {
	n, err := a.parseID(id)
	if err != nil {
		return nil, err
	}
	book, err := a.storage.GetBook(ctx, n)
	if err != nil {
		return nil, err
	}
	books := []Book{book}
	if err = a.service.LoadBooks(ctx, books); err != nil {
		return nil, err
	}
	instances, _, err := a.storage.ListBookInstances(ctx, InstanceFilter{BookID: &n}, Page{})
	if err != nil {
		return nil, err
	}
	if err = a.service.LoadInstances(ctx, instances); err != nil {
		return nil, err
	}
	return a.changeForm(ctx, id, books[0], []InlineView{instanceInline(instances)})
}

// instanceInline renders the copies of a book as tabular rows.
func instanceInline(instances []BookInstance) InlineView {
	opts := NewModelOptions(CatalogAppLabel, BookInstance{})
	inline := InlineView{
		Model:             opts.ModelName,
		VerboseNamePlural: capFirst(opts.VerboseNamePlural),
		Columns:           columnsOf(bookInstanceFields, instanceInlineFields),
		Rows:              make([]Row, 0, len(instances)),
	}
	for _, bi := range instances {
		inline.Rows = append(inline.Rows, Row{
			PK:   bi.ID,
			Repr: bi.String(),
			URL:  opts.ObjectURL(bi.ID),
			Cells: []string{
				bi.ID,
				displayStringer(bi.Borrower, bi.Borrower != nil),
				displayText(bi.Imprint),
				displayDate(bi.DueBack),
				displayStatus(bi.Status),
			},
		})
	}
	return inline
}

func (a *BookAdmin) AddForm(ctx context.Context) (*ChangeForm, error) {
	return a.changeForm(ctx, "", Book{}, nil)
}

// validate checks the form and that every referenced record exists.
func (a *BookAdmin) validate(ctx context.Context, payload []byte) (bookForm, error) {
	var form bookForm
	if err := decodeForm(payload, &form); err != nil {
		return form, err
	}
	ve := ValidationErrors{}
	ve.RequireString("title", &form.Title, MaxTitleLength)
	ve.RequireString("summary", &form.Summary, MaxSummaryLength)
	ve.RequireString("isbn", &form.ISBN, MaxISBNLength)
	ve.RequireRef("author", form.Author)
	ve.RequireRef("language", form.Language)
	if len(form.Genre) == 0 {
		ve.Add("genre", "This field is required.")
	}

	if _, ok := ve["author"]; !ok {
		if err := a.exists(ve, "author", func() error { _, err := a.storage.GetAuthor(ctx, *form.Author); return err }); err != nil {
			return form, err
		}
	}
	if _, ok := ve["language"]; !ok {
		if err := a.exists(ve, "language", func() error { _, err := a.storage.GetLanguage(ctx, *form.Language); return err }); err != nil {
			return form, err
		}
	}
	for _, id := range form.Genre {
		if _, err := a.storage.GetGenre(ctx, id); errors.Is(err, ErrRecordNotFound) {
			ve.Add("genre", fmt.Sprintf("Select a valid choice. %d is not one of the available choices.", id))
		} else if err != nil {
			return form, err
		}
	}
	return form, ve.Err()
}

func (a *BookAdmin) exists(ve ValidationErrors, field string, get func() error) error {
	err := get()
	if errors.Is(err, ErrRecordNotFound) {
		ve.Add(field, invalidChoice)
		return nil
	}
	return err
}

func (form bookForm) apply(b *Book) {
	b.Title = form.Title
	b.AuthorID = form.Author
	b.Summary = form.Summary
	b.ISBN = form.ISBN
	b.GenreIDs = form.Genre
	b.LanguageID = form.Language
}

const duplicateISBN = "Book with this ISBN already exists."

func (a *BookAdmin) Add(ctx context.Context, payload []byte) (*ChangeResult, error) {
	form, err := a.validate(ctx, payload)
	if err != nil {
		return nil, err
	}
	var book Book
	form.apply(&book)
	if err = a.storage.AddBook(ctx, &book); err != nil {
		return nil, uniqueError(err, "isbn", duplicateISBN)
	}
	return a.result(ActionAddition, formatID(book.ID), book, book, nil), nil
}

// snapshot renders the comparable form values of a book.
func (a *BookAdmin) snapshot(b Book) map[string]string {
	ids := make([]string, 0, len(b.GenreIDs))
	seen := map[int64]bool{}
	for _, id := range b.GenreIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, formatID(id))
		}
	}
	sort.Strings(ids)
	ref := func(id *int64) string {
		if id == nil {
			return ""
		}
		return formatID(*id)
	}
	return map[string]string{
		"title":    b.Title,
		"author":   ref(b.AuthorID),
		"summary":  b.Summary,
		"isbn":     b.ISBN,
		"genre":    strings.Join(ids, ","),
		"language": ref(b.LanguageID),
	}
}

func (a *BookAdmin) Change(ctx context.Context, id string, payload []byte) (*ChangeResult, error) {
	n, err := a.parseID(id)
	if err != nil {
		return nil, err
	}
	book, err := a.storage.GetBook(ctx, n)
	if err != nil {
		return nil, err
	}
	form, err := a.validate(ctx, payload)
	if err != nil {
		return nil, err
	}
	before := a.snapshot(book)
	form.apply(&book)
	if err = a.storage.UpdateBook(ctx, book); err != nil {
		return nil, uniqueError(err, "isbn", duplicateISBN)
	}
	return a.result(ActionChange, id, book, book, changedFields(bookFields, before, a.snapshot(book))), nil
}

// Delete fails with ErrProtectedRecord while copies of the book exist.
func (a *BookAdmin) Delete(ctx context.Context, id string) (*ChangeResult, error) {
	n, err := a.parseID(id)
	if err != nil {
		return nil, err
	}
	book, err := a.storage.GetBook(ctx, n)
	if err != nil {
		return nil, err
	}
	if err = a.storage.DeleteBook(ctx, n); err != nil {
		return nil, err
	}
	return a.result(ActionDeletion, id, book, book, nil), nil
}
