package main

import "time"

// CatalogPageSize is the number of records per page of the public lists.
const CatalogPageSize = 10

// Ref is a link to a catalog record.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

func authorRef(a *Author) *Ref {
	if a == nil {
		return nil
	}
	return &Ref{ID: a.ID, Name: a.String(), URL: a.AbsoluteURL()}
}

func bookRef(b *Book) *Ref {
	if b == nil {
		return nil
	}
	return &Ref{ID: b.ID, Name: b.String(), URL: b.AbsoluteURL()}
}

// CopyView is a book instance as shown on a book page.
type CopyView struct {
	ID          string     `json:"id"`
	Imprint     string     `json:"imprint"`
	Status      LoanStatus `json:"status"`
	StatusLabel string     `json:"status_label"`
	DueBack     Date       `json:"due_back"`
	IsOverdue   bool       `json:"is_overdue"`
}

// BookView is the public detail of a book.
type BookView struct {
	ID       int64      `json:"id"`
	Title    string     `json:"title"`
	URL      string     `json:"url"`
	Author   *Ref       `json:"author"`
	Summary  string     `json:"summary"`
	ISBN     string     `json:"isbn"`
	Language string     `json:"language"`
	Genre    string     `json:"genre"`
	Copies   []CopyView `json:"copies,omitempty"`
}

// AuthorView is the public detail of an author.
type AuthorView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth Date   `json:"date_of_birth"`
	DateOfDeath Date   `json:"date_of_death"`
	Books       []Ref  `json:"books,omitempty"`
}

// ListView is a page of a public list.
type ListView[T any] struct {
	Page     int `json:"page"`
	NumPages int `json:"num_pages"`
	Total    int `json:"total"`
	Items    []T `json:"items"`
}

// LoanView is a copy borrowed by a user.
type LoanView struct {
	ID        string `json:"id"`
	Book      *Ref   `json:"book"`
	Imprint   string `json:"imprint"`
	DueBack   Date   `json:"due_back"`
	IsOverdue bool   `json:"is_overdue"`
}

func newBookView(b Book) BookView {
	v := BookView{
		ID:      b.ID,
		Title:   b.Title,
		URL:     b.AbsoluteURL(),
		Author:  authorRef(b.Author),
		Summary: b.Summary,
		ISBN:    b.ISBN,
		Genre:   b.DisplayGenre(),
	}
	if b.Language != nil {
		v.Language = b.Language.Name
	}
	return v
}

func newCopyView(bi BookInstance, now time.Time) CopyView {
	return CopyView{
		ID:          bi.ID,
		Imprint:     bi.Imprint,
		Status:      bi.Status,
		StatusLabel: bi.Status.Label(),
		DueBack:     bi.DueBack,
		IsOverdue:   bi.IsOverdue(now),
	}
}

func newAuthorView(a Author) AuthorView {
	return AuthorView{
		ID:          a.ID,
		Name:        a.String(),
		URL:         a.AbsoluteURL(),
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		DateOfBirth: a.DateOfBirth,
		DateOfDeath: a.DateOfDeath,
	}
}

// NumPages returns the number of pages needed for total records.
func NumPages(total, perPage int) int {
	if total == 0 || perPage <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
