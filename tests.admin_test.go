package main

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAdminConfig() *Config {
	return &Config{Admin: AdminConfig{ListPerPage: 2, RecentActions: 10, Realm: "Library admin"}}
}

// newTestAdminSite returns the catalog admin on a seeded storage.
func newTestAdminSite(t *testing.T, logs LogEntryStorage) (*AdminSite, CatalogStorage) {
	t.Helper()
	config := testAdminConfig()
	storage := newTestCatalogStorage(t)
	clock := NewMockClocker()
	service := NewCatalogService(zap.NewNop(), config, clock, NewIDsHandler(), storage, NewMockCacher(), &MockQueuer{}, logs)
	return NewCatalogAdminSite(zap.NewNop(), config, clock, NewIDsHandler(), storage, service), storage
}

func query(raw string) ChangeListQuery {
	params, _ := url.ParseQuery(raw)
	return ChangeListQuery{Params: params}
}

func mustModelAdmin(t *testing.T, site *AdminSite, model string) ModelAdmin {
	t.Helper()
	admin, err := site.ModelAdmin(model)
	require.NoError(t, err)
	return admin
}

func TestAdminSite_Registry(t *testing.T) {
	site, storage := newTestAdminSite(t, nil)

	models := site.Models()
	require.Len(t, models, 5)
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.VerboseNamePlural)
	}
	assert.Equal(t, []string{"Authors", "Book instances", "Books", "Genres", "Languages"}, names)
	assert.Equal(t, "/admin/catalog/bookinstance", models[1].URL)
	assert.Equal(t, "/admin/catalog/bookinstance/add", models[1].AddURL)

	admin, err := site.ModelAdmin("Book")
	require.NoError(t, err)
	assert.Equal(t, "catalog.book", admin.Options().ContentType())

	_, err = site.ModelAdmin("shelf")
	assert.True(t, errors.Is(err, ErrUnknownModel))

	assert.Error(t, site.Register(NewGenreAdmin(storage, 10)))
}

func TestAdminSite_IndexAndHistory(t *testing.T) {
	now := NewMockClocker().Now()
	entries := []LogEntry{
		{ID: "l:2", ActionTime: now.Add(-3 * time.Hour), ContentType: "catalog.genre", ObjectID: "1", ObjectRepr: "Fantasy", ActionFlag: ActionChange},
		{ID: "l:1", ActionTime: now.Add(-4 * time.Hour), ContentType: "catalog.genre", ObjectID: "9", ObjectRepr: "Horror", ActionFlag: ActionDeletion},
	}
	logs := &MockLogEntryStorage{
		RecentFunc: func(_ context.Context, limit int) ([]LogEntry, error) {
			assert.Equal(t, 10, limit)
			return entries, nil
		},
		ForObjectFunc: func(_ context.Context, contentType, objectID string) ([]LogEntry, error) {
			assert.Equal(t, "catalog.genre", contentType)
			assert.Equal(t, "1", objectID)
			return entries[:1], nil
		},
	}
	site, _ := newTestAdminSite(t, logs)
	ctx := context.Background()

	index, err := site.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Library admin", index.SiteTitle)
	require.Len(t, index.Apps, 1)
	assert.Equal(t, "Catalog", index.Apps[0].Name)
	require.Len(t, index.RecentActions, 2)
	assert.Equal(t, "Changed", index.RecentActions[0].Action)
	assert.Equal(t, "3 hours ago", index.RecentActions[0].When)
	assert.Equal(t, "/admin/catalog/genre/1", index.RecentActions[0].URL)
	assert.Empty(t, index.RecentActions[1].URL)

	history, err := site.History(ctx, "genre", "1")
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = site.History(ctx, "shelf", "1")
	assert.True(t, errors.Is(err, ErrUnknownModel))

	for _, id := range []string{"99", "abc"} {
		_, err = site.History(ctx, "genre", id)
		assert.True(t, errors.Is(err, ErrRecordNotFound), id)
	}
}

func TestGenreAdmin(t *testing.T) {
	site, _ := newTestAdminSite(t, nil)
	admin := mustModelAdmin(t, site, "genre")
	ctx := context.Background()

	t.Run("change list", func(t *testing.T) {
		cl, err := admin.ChangeList(ctx, query(""))
		require.NoError(t, err)
		assert.Equal(t, 4, cl.Total)
		assert.Equal(t, 2, cl.NumPages)
		require.Len(t, cl.Rows, 2)
		assert.Equal(t, "Adventure", cl.Rows[0].Repr)
		assert.Equal(t, "/admin/catalog/genre/2", cl.Rows[0].URL)
		assert.Equal(t, []Column{{Name: "__str__", Label: "Genre"}}, cl.Columns)

		cl, err = admin.ChangeList(ctx, query("p=2"))
		require.NoError(t, err)
		assert.Equal(t, "Fantasy", cl.Rows[0].Repr)
	})

	t.Run("invalid list parameters", func(t *testing.T) {
		for _, raw := range []string{"p=3", "p=0", "p=x", "q=fan"} {
			_, err := admin.ChangeList(ctx, query(raw))
			assert.True(t, errors.Is(err, ErrInvalidFilter), raw)
		}
	})

	var id string
	t.Run("add", func(t *testing.T) {
		res, err := admin.Add(ctx, []byte(`{"name":"Horror"}`))
		require.NoError(t, err)
		assert.Equal(t, "Added.", res.Message)
		assert.Equal(t, "5", res.ObjectID)
		assert.Equal(t, "Horror", res.Repr)
		id = res.ObjectID
	})

	t.Run("add validation", func(t *testing.T) {
		_, err := admin.Add(ctx, []byte(`{"name":"  "}`))
		var ve ValidationErrors
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, []string{"This field is required."}, ve["name"])

		_, err = admin.Add(ctx, []byte(`{"name":"a very long genre name which does not fit"}`))
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve["name"][0], "at most 32 characters")

		_, err = admin.Add(ctx, nil)
		assert.True(t, errors.Is(err, ErrInvalidRequestBody))
	})

	t.Run("change", func(t *testing.T) {
		res, err := admin.Change(ctx, id, []byte(`{"name":"Horror"}`))
		require.NoError(t, err)
		assert.Equal(t, "No fields changed.", res.Message)

		res, err = admin.Change(ctx, id, []byte(`{"name":"Gothic"}`))
		require.NoError(t, err)
		assert.Equal(t, "Changed Name.", res.Message)

		form, err := admin.Detail(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Gothic", form.Repr)
		assert.Equal(t, "/admin/catalog/genre/5/history", form.HistoryURL)
	})

	t.Run("delete", func(t *testing.T) {
		res, err := admin.Delete(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Deleted.", res.Message)
		_, err = admin.Detail(ctx, id)
		assert.True(t, errors.Is(err, ErrRecordNotFound))
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := admin.Change(ctx, "abc", []byte(`{"name":"x"}`))
		assert.True(t, errors.Is(err, ErrRecordNotFound))
	})
}

func TestAuthorAdmin(t *testing.T) {
	site, _ := newTestAdminSite(t, nil)
	admin := mustModelAdmin(t, site, "author")
	ctx := context.Background()

	cl, err := admin.ChangeList(ctx, query(""))
	require.NoError(t, err)
	require.Len(t, cl.Rows, 2)
	assert.Equal(t, []string{"Leckie", "Ann"}, cl.Rows[0].Cells)

	form, err := admin.Detail(ctx, "1")
	require.NoError(t, err)
	require.Len(t, form.Inlines, 1)
	assert.Equal(t, "Books", form.Inlines[0].VerboseNamePlural)
	require.Len(t, form.Inlines[0].Rows, 2)
	assert.Equal(t, []string{"The Hobbit", "There and back again.", "9780261102217", "Adventure, Classic, Fantasy, Poetry", "English"}, form.Inlines[0].Rows[0].Cells)

	res, err := admin.Change(ctx, "2", []byte(`{"first_name":"Anne","last_name":"Leckey"}`))
	require.NoError(t, err)
	assert.Equal(t, "Changed First name and Last name.", res.Message)
	assert.Equal(t, "Leckey, Anne", res.Repr)
}

func TestBookAdmin(t *testing.T) {
	site, storage := newTestAdminSite(t, nil)
	admin := mustModelAdmin(t, site, "book")
	ctx := context.Background()

	t.Run("change list", func(t *testing.T) {
		cl, err := admin.ChangeList(ctx, query(""))
		require.NoError(t, err)
		require.Len(t, cl.Rows, 2)
		assert.Equal(t, []string{"The Hobbit", "Tolkien, John", "Adventure, Classic, Fantasy"}, cl.Rows[0].Cells)
		assert.Equal(t, "Genre", cl.Columns[2].Label)
	})

	t.Run("detail with copies", func(t *testing.T) {
		form, err := admin.Detail(ctx, "1")
		require.NoError(t, err)
		require.Len(t, form.Inlines, 1)
		rows := form.Inlines[0].Rows
		require.Len(t, rows, 2)
		assert.Equal(t, []string{testOverdueCopy, "reader", "Allen & Unwin", "2023-06-30", "On loan"}, rows[0].Cells)
		assert.Equal(t, []string{testAvailableCopy, "-", "Allen & Unwin", "-", "Available"}, rows[1].Cells)
		genre := form.Fieldsets[0].Fields[4]
		assert.Equal(t, "genre", genre.Name)
		assert.Len(t, genre.Choices, 4)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := admin.Add(ctx, []byte(`{}`))
		var ve ValidationErrors
		require.True(t, errors.As(err, &ve))
		for _, field := range []string{"title", "author", "summary", "isbn", "genre", "language"} {
			assert.Contains(t, ve, field)
		}

		_, err = admin.Add(ctx, []byte(`{"title":"T","author":99,"summary":"S","isbn":"1","genre":[1,42],"language":1}`))
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, []string{invalidChoice}, ve["author"])
		assert.Equal(t, []string{"Select a valid choice. 42 is not one of the available choices."}, ve["genre"])
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		_, err := admin.Add(ctx, []byte(`{"title":"T","author":2,"summary":"S","isbn":"9780261102217","genre":[1],"language":1}`))
		var ve ValidationErrors
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, []string{duplicateISBN}, ve["isbn"])
	})

	t.Run("text stripped", func(t *testing.T) {
		_, err := admin.Add(ctx, []byte(`{"title":"T","author":2,"summary":"S","isbn":" 9780261102217 ","genre":[1],"language":1}`))
		var ve ValidationErrors
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, []string{duplicateISBN}, ve["isbn"])

		res, err := admin.Add(ctx, []byte(`{"title":" Ancillary Justice ","author":2,"summary":"S","isbn":"  9780316246620  ","genre":[1],"language":1}`))
		require.NoError(t, err)
		assert.Equal(t, "Ancillary Justice", res.Repr)
		id, err := ParseIntID(res.ObjectID)
		require.NoError(t, err)
		book, err := storage.GetBook(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "9780316246620", book.ISBN)
		assert.Equal(t, "Ancillary Justice", book.Title)
	})

	t.Run("change genres", func(t *testing.T) {
		res, err := admin.Change(ctx, "2", []byte(`{"title":"The Silmarillion","author":1,"summary":"The elder days.","isbn":"9780261102736","genre":[2,1],"language":1}`))
		require.NoError(t, err)
		assert.Equal(t, "Changed Genre.", res.Message)
	})

	t.Run("delete protected by copies", func(t *testing.T) {
		_, err := admin.Delete(ctx, "1")
		assert.True(t, errors.Is(err, ErrProtectedRecord))
	})
}

func TestBookInstanceAdmin(t *testing.T) {
	site, _ := newTestAdminSite(t, nil)
	admin := mustModelAdmin(t, site, "bookinstance")
	ctx := context.Background()

	t.Run("filters", func(t *testing.T) {
		testCases := []struct {
			raw   string
			total int
		}{
			{"", 3},
			{"status__exact=o", 2},
			{"status__exact=r", 0},
			{"due_back__isnull=True", 1},
			{"due_back__isnull=False", 2},
			{"due_back__gte=2023-07-01&due_back__lt=2023-08-01", 1},
			{"status__exact=o&due_back__lt=2023-07-01", 1},
		}
		for _, tc := range testCases {
			cl, err := admin.ChangeList(ctx, query(tc.raw))
			require.NoError(t, err, tc.raw)
			assert.Equal(t, tc.total, cl.Total, tc.raw)
		}
	})

	t.Run("invalid filters", func(t *testing.T) {
		for _, raw := range []string{"status__exact=z", "due_back__isnull=maybe", "due_back__gte=yesterday", "borrower=1"} {
			_, err := admin.ChangeList(ctx, query(raw))
			assert.True(t, errors.Is(err, ErrInvalidFilter), raw)
		}
	})

	t.Run("filter specs", func(t *testing.T) {
		cl, err := admin.ChangeList(ctx, query("status__exact=o&p=1"))
		require.NoError(t, err)
		require.Len(t, cl.Filters, 2)

		status := cl.Filters[0]
		require.Len(t, status.Choices, 5)
		assert.False(t, status.Choices[0].Selected)
		assert.True(t, status.Choices[2].Selected)
		assert.Equal(t, "?status__exact=o", status.Choices[2].Query)

		due := cl.Filters[1]
		assert.Equal(t, "due back", due.Title)
		labels := make([]string, 0, len(due.Choices))
		for _, c := range due.Choices {
			labels = append(labels, c.Label)
		}
		assert.Equal(t, []string{"Any date", "Today", "Past 7 days", "This month", "This year", "No date", "Has date"}, labels)
		assert.True(t, due.Choices[0].Selected)
		assert.Equal(t, "?due_back__gte=2023-07-02&due_back__lt=2023-07-03&status__exact=o", due.Choices[1].Query)
		assert.Equal(t, "?due_back__gte=2023-06-25&due_back__lt=2023-07-03&status__exact=o", due.Choices[2].Query)
	})

	t.Run("add", func(t *testing.T) {
		res, err := admin.Add(ctx, []byte(`{"id":"3E9EAE06-C6EA-4A6C-AB5E-9A5C4D5C5D44","book":2,"imprint":"Unwin"}`))
		require.NoError(t, err)
		assert.Equal(t, "3e9eae06-c6ea-4a6c-ab5e-9a5c4d5c5d44", res.ObjectID)
		assert.Equal(t, "3e9eae06-c6ea-4a6c-ab5e-9a5c4d5c5d44 (The Silmarillion)", res.Repr)
		bi, ok := res.Object.(BookInstance)
		require.True(t, ok)
		assert.Equal(t, DefaultLoanStatus, bi.Status)

		res, err = admin.Add(ctx, []byte(`{"book":2,"imprint":"Unwin","status":"a"}`))
		require.NoError(t, err)
		assert.True(t, IsUUID(res.ObjectID))
	})

	t.Run("add validation", func(t *testing.T) {
		_, err := admin.Add(ctx, []byte(`{"id":"xyz","book":7,"imprint":"","due_back":"soon","status":"z"}`))
		var ve ValidationErrors
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, []string{"“xyz” is not a valid UUID."}, ve["id"])
		assert.Equal(t, []string{invalidChoice}, ve["book"])
		assert.Contains(t, ve, "imprint")
		assert.Equal(t, []string{"Enter a valid date."}, ve["due_back"])
		assert.Contains(t, ve, "status")
	})

	t.Run("change", func(t *testing.T) {
		res, err := admin.Change(ctx, testAvailableCopy, []byte(`{"book":1,"imprint":"Allen & Unwin","due_back":"2023-07-20","status":"o"}`))
		require.NoError(t, err)
		assert.Equal(t, "Changed Due back and Status.", res.Message)

		_, err = admin.Change(ctx, testAvailableCopy, []byte(`{"id":"`+testLoanedCopy+`","book":1,"imprint":"x"}`))
		var ve ValidationErrors
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve, "id")
	})

	t.Run("detail", func(t *testing.T) {
		form, err := admin.Detail(ctx, "0B6B7BD3-93B7-4D39-9E2B-6D2F1A2F2A11")
		require.NoError(t, err)
		assert.Equal(t, testOverdueCopy, form.PK)
		require.Len(t, form.Fieldsets, 2)
		assert.Equal(t, "Availability", form.Fieldsets[1].Name)

		_, err = admin.Detail(ctx, "nope")
		assert.True(t, errors.Is(err, ErrRecordNotFound))
	})

	t.Run("add form", func(t *testing.T) {
		form, err := admin.AddForm(ctx)
		require.NoError(t, err)
		assert.Empty(t, form.PK)
		id := form.Fieldsets[0].Fields[2]
		assert.Equal(t, "id", id.Name)
		assert.True(t, IsUUID(id.Value.(string)))
		assert.Equal(t, "m", form.Fieldsets[1].Fields[0].Value)
	})

	t.Run("delete", func(t *testing.T) {
		res, err := admin.Delete(ctx, testLoanedCopy)
		require.NoError(t, err)
		assert.Equal(t, "Deleted.", res.Message)
		_, err = admin.Delete(ctx, testLoanedCopy)
		assert.True(t, errors.Is(err, ErrRecordNotFound))
	})
}

func TestChangeMessage(t *testing.T) {
	assert.Equal(t, "Added.", changeMessage(ActionAddition, []string{"Name"}))
	assert.Equal(t, "Deleted.", changeMessage(ActionDeletion, nil))
	assert.Equal(t, "No fields changed.", changeMessage(ActionChange, nil))
	assert.Equal(t, "Changed Title.", changeMessage(ActionChange, []string{"Title"}))
	assert.Equal(t, "Changed Title and ISBN.", changeMessage(ActionChange, []string{"Title", "ISBN"}))
	assert.Equal(t, "Changed Title, Summary and ISBN.", changeMessage(ActionChange, []string{"Title", "Summary", "ISBN"}))
}

func TestModelNames(t *testing.T) {
	assert.Equal(t, "book instance", splitCamelCase("BookInstance"))
	assert.Equal(t, "genre", splitCamelCase("Genre"))
	assert.Equal(t, "Book instances", capFirst("book instances"))
	assert.Equal(t, "", capFirst(""))
	assert.Equal(t, "Due back", fieldLabel("due_back"))

	opts := NewModelOptions(CatalogAppLabel, BookInstance{})
	assert.Equal(t, "bookinstance", opts.ModelName)
	assert.Equal(t, "book instances", opts.VerboseNamePlural)
	assert.Equal(t, "/admin/catalog/bookinstance/a%20b", opts.ObjectURL("a b"))
}
