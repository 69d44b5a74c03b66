package main

import (
	"context"
	"errors"
	"fmt"
)

var bookInstanceFields = []FieldMeta{
	{Name: "id", Label: "Id", Type: "uuid"},
	{Name: "borrower", Label: "Borrower", Type: "foreign_key"},
	{Name: "book", Label: "Book", Type: "foreign_key", Required: true},
	{Name: "imprint", Label: "Imprint", Type: "char", Required: true, MaxLength: MaxImprintLength},
	{Name: "due_back", Label: "Due back", Type: "date"},
	{Name: "status", Label: "Status", Type: "choice", MaxLength: 1, Choices: LoanStatusChoices},
}

// BookInstanceAdmin manages copies with status and due date filters.
type BookInstanceAdmin struct {
	modelAdmin
	storage CatalogStorage
	service CatalogServiceProvider
	ids     UIDHandler
	filters []listFilter
}

// bookInstanceForm holds the submitted copy fields. Omitted id and status
// keep their default on creation and their stored value on change.
type bookInstanceForm struct {
	ID      *string     `json:"id"`
	Book    *int64      `json:"book"`
	Imprint string      `json:"imprint"`
	DueBack *string     `json:"due_back"`
	Status  *LoanStatus `json:"status"`
}

// NewBookInstanceAdmin provides the admin of book copies.
func NewBookInstanceAdmin(storage CatalogStorage, service CatalogServiceProvider, clock Clocker, ids UIDHandler, perPage int) *BookInstanceAdmin {
	opts := NewModelOptions(CatalogAppLabel, BookInstance{})
	opts.ListDisplay = []string{"book", "status", "due_back", "id"}
	opts.Fieldsets = []Fieldset{
		{Fields: []string{"book", "imprint", "id"}},
		{Name: "Availability", Fields: []string{"status", "due_back"}},
	}
	opts.ListFilter = []string{"status", "due_back"}
	opts.ListPerPage = perPage
	return &BookInstanceAdmin{
		modelAdmin: modelAdmin{opts: opts, fields: bookInstanceFields},
		storage:    storage,
		service:    service,
		ids:        ids,
		filters: []listFilter{
			statusFilter{},
			dateFilter{field: "due_back", title: "due back", clock: clock},
		},
	}
}

func (a *BookInstanceAdmin) ChangeList(ctx context.Context, q ChangeListQuery) (*ChangeList, error) {
	var allowed []string
	for _, f := range a.filters {
		allowed = append(allowed, f.Params()...)
	}
	if err := rejectParams(q, allowed...); err != nil {
		return nil, err
	}
	var filter InstanceFilter
	for _, f := range a.filters {
		if err := f.Apply(q.Params, &filter); err != nil {
			return nil, err
		}
	}
	page, p, err := pagedQuery(q, a.opts.ListPerPage)
	if err != nil {
		return nil, err
	}
	instances, total, err := a.storage.ListBookInstances(ctx, filter, p)
	if err != nil {
		return nil, err
	}
	if err = checkPage(page, total, a.opts.ListPerPage); err != nil {
		return nil, err
	}
	if err = a.service.LoadInstances(ctx, instances); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(instances))
	for _, bi := range instances {
		rows = append(rows, a.row(bi.ID, bi.String(),
			displayStringer(bi.Book, bi.Book != nil),
			displayStatus(bi.Status),
			displayDate(bi.DueBack),
			bi.ID,
		))
	}
	specs := make([]FilterSpec, 0, len(a.filters))
	for _, f := range a.filters {
		specs = append(specs, f.Spec(q.Params))
	}
	return a.changeList(page, total, rows, specs), nil
}

func (a *BookInstanceAdmin) values(bi BookInstance) map[string]FieldView {
	return map[string]FieldView{
		"id":       textView(bi.ID),
		"borrower": {Value: refValue(bi.BorrowerID), Display: displayStringer(bi.Borrower, bi.Borrower != nil)},
		"book":     {Value: refValue(bi.BookID), Display: displayStringer(bi.Book, bi.Book != nil)},
		"imprint":  textView(bi.Imprint),
		"due_back": {Value: dateValue(bi.DueBack), Display: displayDate(bi.DueBack)},
		"status":   {Value: string(bi.Status), Display: displayStatus(bi.Status)},
	}
}

func (a *BookInstanceAdmin) changeForm(ctx context.Context, pk string, bi BookInstance) (*ChangeForm, error) {
	books, _, err := a.storage.ListBooks(ctx, Page{})
	if err != nil {
		return nil, err
	}
	choices := make([]Choice, 0, len(books))
	for _, b := range books {
		choices = append(choices, Choice{Value: formatID(b.ID), Label: b.String()})
	}
	repr := ""
	if pk != "" {
		repr = bi.String()
	}
	f := a.form(pk, repr, a.values(bi), nil)
	for i := range f.Fieldsets {
		for j := range f.Fieldsets[i].Fields {
			if f.Fieldsets[i].Fields[j].Name == "book" {
				f.Fieldsets[i].Fields[j].Choices = choices
			}
		}
	}
	return f, nil
}

func (a *BookInstanceAdmin) get(ctx context.Context, id string) (BookInstance, error) {
	if !IsUUID(id) {
		return BookInstance{}, fmt.Errorf("%s %q: %w", a.opts.VerboseName, id, ErrRecordNotFound)
	}
	bi, err := a.storage.GetBookInstance(ctx, NormalizeUUID(id))
	if err != nil {
		return bi, err
	}
	instances := []BookInstance{bi}
	if err = a.service.LoadInstances(ctx, instances); err != nil {
		return bi, err
	}
	return instances[0], nil
}

func (a *BookInstanceAdmin) Detail(ctx context.Context, id string) (*ChangeForm, error) {
	bi, err := a.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.changeForm(ctx, bi.ID, bi)
}

// AddForm proposes a fresh id and the default status.
func (a *BookInstanceAdmin) AddForm(ctx context.Context) (*ChangeForm, error) {
	return a.changeForm(ctx, "", BookInstance{ID: a.ids.Generate(""), Status: DefaultLoanStatus})
}

func (a *BookInstanceAdmin) validate(ctx context.Context, payload []byte) (bookInstanceForm, Date, error) {
	var form bookInstanceForm
	var due Date
	if err := decodeForm(payload, &form); err != nil {
		return form, due, err
	}
	ve := ValidationErrors{}
	if form.ID != nil && *form.ID != "" && !IsUUID(*form.ID) {
		ve.Add("id", fmt.Sprintf("“%s” is not a valid UUID.", *form.ID))
	}
	ve.RequireRef("book", form.Book)
	if _, ok := ve["book"]; !ok {
		if _, err := a.storage.GetBook(ctx, *form.Book); errors.Is(err, ErrRecordNotFound) {
			ve.Add("book", invalidChoice)
		} else if err != nil {
			return form, due, err
		}
	}
	ve.RequireString("imprint", &form.Imprint, MaxImprintLength)
	if form.DueBack != nil {
		d, err := ParseDate(*form.DueBack)
		if err != nil {
			ve.Add("due_back", "Enter a valid date.")
		}
		due = d
	}
	if form.Status != nil && !form.Status.IsValid() {
		ve.InvalidChoice("status", string(*form.Status))
	}
	return form, due, ve.Err()
}

const duplicateInstance = "Book instance with this Id already exists."

func (a *BookInstanceAdmin) Add(ctx context.Context, payload []byte) (*ChangeResult, error) {
	form, due, err := a.validate(ctx, payload)
	if err != nil {
		return nil, err
	}
	bi := BookInstance{
		ID:      a.ids.Generate(""),
		BookID:  form.Book,
		Imprint: form.Imprint,
		DueBack: due,
		Status:  DefaultLoanStatus,
	}
	if form.ID != nil && *form.ID != "" {
		bi.ID = NormalizeUUID(*form.ID)
	}
	if form.Status != nil {
		bi.Status = *form.Status
	}
	if err = a.storage.AddBookInstance(ctx, &bi); err != nil {
		return nil, uniqueError(err, "id", duplicateInstance)
	}
	loaded := []BookInstance{bi}
	if err = a.service.LoadInstances(ctx, loaded); err != nil {
		return nil, err
	}
	return a.result(ActionAddition, bi.ID, loaded[0], bi, nil), nil
}

func snapshotInstance(bi BookInstance) map[string]string {
	book := ""
	if bi.BookID != nil {
		book = formatID(*bi.BookID)
	}
	return map[string]string{
		"book":     book,
		"imprint":  bi.Imprint,
		"due_back": bi.DueBack.String(),
		"status":   string(bi.Status),
	}
}

func (a *BookInstanceAdmin) Change(ctx context.Context, id string, payload []byte) (*ChangeResult, error) {
	bi, err := a.get(ctx, id)
	if err != nil {
		return nil, err
	}
	form, due, err := a.validate(ctx, payload)
	if err != nil {
		return nil, err
	}
	if form.ID != nil && *form.ID != "" && NormalizeUUID(*form.ID) != bi.ID {
		return nil, ValidationErrors{"id": {"Id cannot be changed."}}
	}
	before := snapshotInstance(bi)
	bi.BookID = form.Book
	bi.Imprint = form.Imprint
	bi.DueBack = due
	if form.Status != nil {
		bi.Status = *form.Status
	}
	if err = a.storage.UpdateBookInstance(ctx, bi); err != nil {
		return nil, uniqueError(err, "id", duplicateInstance)
	}
	loaded := []BookInstance{bi}
	if err = a.service.LoadInstances(ctx, loaded); err != nil {
		return nil, err
	}
	return a.result(ActionChange, bi.ID, loaded[0], bi, changedFields(a.fields, before, snapshotInstance(bi))), nil
}

func (a *BookInstanceAdmin) Delete(ctx context.Context, id string) (*ChangeResult, error) {
	bi, err := a.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = a.storage.DeleteBookInstance(ctx, bi.ID); err != nil {
		return nil, err
	}
	return a.result(ActionDeletion, bi.ID, bi, bi, nil), nil
}
