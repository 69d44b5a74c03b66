package main

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Field length limits of the catalog schema.
const (
	MaxGenreNameLength    = 32
	MaxLanguageNameLength = 32
	MaxAuthorNameLength   = 32
	MaxTitleLength        = 256
	MaxSummaryLength      = 1024
	MaxISBNLength         = 13
	MaxImprintLength      = 256
	MaxUsernameLength     = 150

	// DisplayGenreLimit is the number of genres shown by Book.DisplayGenre.
	DisplayGenreLimit = 3
)

// Date is a calendar day without time of day. The zero value is a NULL date.
type Date struct {
	time.Time
	Valid bool
}

// NewDate returns the valid date of the calendar day of t in its own location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// ParseDate parses a `YYYY-MM-DD` string. An empty string gives a NULL date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected format YYYY-MM-DD", s)
	}
	return Date{Time: t, Valid: true}, nil
}

// AddDays returns the date shifted by n days.
func (d Date) AddDays(n int) Date {
	if !d.Valid {
		return d
	}
	return Date{Time: d.Time.AddDate(0, 0, n), Valid: true}
}

// String returns the `YYYY-MM-DD` form or an empty string for NULL.
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(strings.Trim(s, `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner. Drivers hand dates back either as time.Time
// or as their textual form.
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	}
	return fmt.Errorf("date: cannot scan type %T", value)
}

func (d *Date) scanText(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.String(), nil
}

// LoanStatus is the availability state of a book instance.
type LoanStatus string

const (
	StatusMaintenance LoanStatus = "m"
	StatusOnLoan      LoanStatus = "o"
	StatusAvailable   LoanStatus = "a"
	StatusReserved    LoanStatus = "r"

	// DefaultLoanStatus is assigned to new instances created without a status.
	DefaultLoanStatus = StatusMaintenance
)

// Choice is a stored value with its human readable label.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// LoanStatusChoices lists the loan statuses in their declared order.
var LoanStatusChoices = []Choice{
	{string(StatusMaintenance), "Maintenance"},
	{string(StatusOnLoan), "On loan"},
	{string(StatusAvailable), "Available"},
	{string(StatusReserved), "Reserved"},
}

// Label returns the display label of the status. Blank status has an empty label.
func (s LoanStatus) Label() string {
	for _, c := range LoanStatusChoices {
		if c.Value == string(s) {
			return c.Label
		}
	}
	return ""
}

// IsValid reports whether s is blank or one of the declared choices.
func (s LoanStatus) IsValid() bool {
	return s == "" || s.Label() != ""
}

// Genre represents a book genre.
type Genre struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

func (g Genre) String() string {
	return g.Name
}

// Language represents the language a book is written in.
type Language struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

func (l Language) String() string {
	return l.Name
}

// Author represents an author.
type Author struct {
	ID          int64  `db:"id" json:"id"`
	FirstName   string `db:"first_name" json:"first_name"`
	LastName    string `db:"last_name" json:"last_name"`
	DateOfBirth Date   `db:"date_of_birth" json:"date_of_birth"`
	DateOfDeath Date   `db:"date_of_death" json:"date_of_death"`
}

func (a Author) String() string {
	return a.LastName + ", " + a.FirstName
}

// AbsoluteURL returns the url to access a particular author.
func (a Author) AbsoluteURL() string {
	return fmt.Sprintf("/catalog/author/%d", a.ID)
}

// Book represents a title, not a specific copy of it. Author, Language and
// Genres are only populated when the book was loaded with its relations.
type Book struct {
	ID         int64     `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	AuthorID   *int64    `db:"author_id" json:"author"`
	Summary    string    `db:"summary" json:"summary"`
	ISBN       string    `db:"isbn" json:"isbn"`
	LanguageID *int64    `db:"language_id" json:"language"`
	GenreIDs   []int64   `db:"-" json:"genre"`
	Author     *Author   `db:"-" json:"-"`
	Language   *Language `db:"-" json:"-"`
	Genres     []Genre   `db:"-" json:"-"`
}

func (b Book) String() string {
	return b.Title
}

// AbsoluteURL returns the url to access a detail record for this book.
func (b Book) AbsoluteURL() string {
	return fmt.Sprintf("/catalog/book/%d", b.ID)
}

// DisplayGenre joins the names of the first genres of the book. Genres are
// expected in their default ordering.
func (b Book) DisplayGenre() string {
	names := make([]string, 0, DisplayGenreLimit)
	for i, g := range b.Genres {
		if i == DisplayGenreLimit {
			break
		}
		names = append(names, g.Name)
	}
	return strings.Join(names, ", ")
}

// BookInstance represents a specific copy of a book that can be borrowed.
type BookInstance struct {
	ID         string     `db:"id" json:"id"`
	BookID     *int64     `db:"book_id" json:"book"`
	BorrowerID *int64     `db:"borrower_id" json:"borrower"`
	Imprint    string     `db:"imprint" json:"imprint"`
	DueBack    Date       `db:"due_back" json:"due_back"`
	Status     LoanStatus `db:"status" json:"status"`
	Book       *Book      `db:"-" json:"-"`
	Borrower   *User      `db:"-" json:"-"`
}

func (bi BookInstance) String() string {
	title := "-"
	if bi.Book != nil {
		title = bi.Book.Title
	}
	return fmt.Sprintf("%s (%s)", bi.ID, title)
}

// IsOverdue reports whether the copy was due back before the day of now.
func (bi BookInstance) IsOverdue(now time.Time) bool {
	if !bi.DueBack.Valid {
		return false
	}
	return NewDate(now).Time.After(bi.DueBack.Time)
}

// User is a library account. Staff users may access the admin site.
type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password" json:"-"`
	IsStaff      bool   `db:"is_staff" json:"is_staff"`
	IsActive     bool   `db:"is_active" json:"is_active"`
}

func (u User) String() string {
	return u.Username
}
