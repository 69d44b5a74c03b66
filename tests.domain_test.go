package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		d, err := ParseDate("2023-06-30")
		require.NoError(t, err)
		assert.True(t, d.Valid)
		assert.Equal(t, "2023-06-30", d.String())

		d, err = ParseDate("")
		require.NoError(t, err)
		assert.False(t, d.Valid)
		assert.Equal(t, "", d.String())

		_, err = ParseDate("30/06/2023")
		assert.Error(t, err)
	})

	t.Run("json", func(t *testing.T) {
		data, err := jsonCodec.Marshal(struct {
			A Date `json:"a"`
			B Date `json:"b"`
		}{A: NewDate(NewMockClocker().Now())})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":"2023-07-02","b":null}`, string(data))

		var got struct {
			A Date `json:"a"`
			B Date `json:"b"`
		}
		require.NoError(t, jsonCodec.Unmarshal([]byte(`{"a":"1892-01-03","b":null}`), &got))
		assert.Equal(t, "1892-01-03", got.A.String())
		assert.False(t, got.B.Valid)
		assert.Error(t, jsonCodec.Unmarshal([]byte(`{"a":"tomorrow"}`), &got))
	})

	t.Run("scan", func(t *testing.T) {
		testCases := []struct {
			name  string
			value interface{}
			want  string
		}{
			{"null", nil, ""},
			{"time", time.Date(2023, 7, 10, 15, 4, 5, 0, time.UTC), "2023-07-10"},
			{"text", "2023-07-10", "2023-07-10"},
			{"timestamp text", []byte("2023-07-10 00:00:00+00:00"), "2023-07-10"},
		}
		for _, tc := range testCases {
			var d Date
			require.NoError(t, d.Scan(tc.value), tc.name)
			assert.Equal(t, tc.want, d.String(), tc.name)
		}
		var d Date
		assert.Error(t, d.Scan(42))
	})

	t.Run("value", func(t *testing.T) {
		v, err := Date{}.Value()
		require.NoError(t, err)
		assert.Nil(t, v)
		v, err = NewDate(NewMockClocker().Now()).Value()
		require.NoError(t, err)
		assert.Equal(t, "2023-07-02", v)
	})
}

func TestBookInstance_IsOverdue(t *testing.T) {
	now := NewMockClocker().Now().Add(15 * time.Hour)
	testCases := []struct {
		name string
		due  string
		want bool
	}{
		{"no due date", "", false},
		{"due yesterday", "2023-07-01", true},
		{"due today", "2023-07-02", false},
		{"due tomorrow", "2023-07-03", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			due, err := ParseDate(tc.due)
			require.NoError(t, err)
			bi := BookInstance{ID: testOverdueCopy, DueBack: due, Status: StatusOnLoan}
			assert.Equal(t, tc.want, bi.IsOverdue(now))
		})
	}
}

func TestBook_DisplayGenre(t *testing.T) {
	b := Book{Title: "The Hobbit"}
	assert.Equal(t, "", b.DisplayGenre())
	b.Genres = []Genre{{Name: "Adventure"}, {Name: "Classic"}}
	assert.Equal(t, "Adventure, Classic", b.DisplayGenre())
	b.Genres = append(b.Genres, Genre{Name: "Fantasy"}, Genre{Name: "Poetry"})
	assert.Equal(t, "Adventure, Classic, Fantasy", b.DisplayGenre())
}

func TestRecordNames(t *testing.T) {
	author := Author{ID: 1, FirstName: "John", LastName: "Tolkien"}
	assert.Equal(t, "Tolkien, John", author.String())
	assert.Equal(t, "/catalog/author/1", author.AbsoluteURL())

	book := Book{ID: 3, Title: "The Hobbit"}
	assert.Equal(t, "/catalog/book/3", book.AbsoluteURL())

	assert.Equal(t, testOverdueCopy+" (-)", BookInstance{ID: testOverdueCopy}.String())
	assert.Equal(t, testOverdueCopy+" (The Hobbit)", BookInstance{ID: testOverdueCopy, Book: &book}.String())
}

func TestLoanStatus(t *testing.T) {
	assert.Equal(t, "On loan", StatusOnLoan.Label())
	assert.Equal(t, "Maintenance", DefaultLoanStatus.Label())
	assert.Equal(t, "", LoanStatus("").Label())
	assert.True(t, LoanStatus("").IsValid())
	assert.True(t, StatusReserved.IsValid())
	assert.False(t, LoanStatus("x").IsValid())
}

func TestValidationErrors(t *testing.T) {
	ve := ValidationErrors{}
	assert.NoError(t, ve.Err())

	blank := " "
	ve.RequireString("title", &blank, MaxTitleLength)
	ve.MaxLength("isbn", "97802611022170", MaxISBNLength)
	ve.RequireRef("author", nil)
	ve.InvalidChoice("status", "z")
	require.Error(t, ve.Err())

	assert.Equal(t, []string{"This field is required."}, ve["title"])
	assert.Equal(t, []string{"Ensure this value has at most 13 characters (it has 14)."}, ve["isbn"])
	assert.Equal(t, []string{"Select a valid choice. z is not one of the available choices."}, ve["status"])
	assert.Equal(t,
		"invalid data: author: This field is required.; isbn: Ensure this value has at most 13 characters (it has 14).; status: Select a valid choice. z is not one of the available choices.; title: This field is required.",
		ve.Error())
}

func TestValidationErrors_RequireStringTrims(t *testing.T) {
	ve := ValidationErrors{}
	isbn := "  9780261102217 "
	ve.RequireString("isbn", &isbn, MaxISBNLength)
	assert.NoError(t, ve.Err())
	assert.Equal(t, "9780261102217", isbn)

	long := " 97802611022170 "
	ve.RequireString("isbn", &long, MaxISBNLength)
	assert.Equal(t, []string{"Ensure this value has at most 13 characters (it has 14)."}, ve["isbn"])
}

func TestNumPages(t *testing.T) {
	assert.Equal(t, 1, NumPages(0, 10))
	assert.Equal(t, 1, NumPages(10, 10))
	assert.Equal(t, 2, NumPages(11, 10))
}
