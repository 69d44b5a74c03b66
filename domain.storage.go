package main

import (
	"context"
	"errors"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrUniqueViolation   = errors.New("unique constraint violated")
	ErrProtectedRecord   = errors.New("record is referenced by protected foreign keys")
	ErrInvalidReference  = errors.New("referenced record does not exist")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Page restricts a listing to a window of records. A zero Limit means no limit.
type Page struct {
	Offset int
	Limit  int
}

// InstanceFilter narrows a listing of book instances. Due dates bounds are
// half-open: DueFrom is inclusive and DueBefore is exclusive.
type InstanceFilter struct {
	Status     *LoanStatus
	DueFrom    Date
	DueBefore  Date
	HasDueBack *bool
	BookID     *int64
	BorrowerID *int64
}

// CatalogStorage defines possible operations on the catalog entities.
type CatalogStorage interface {
	AddGenre(ctx context.Context, genre *Genre) error
	GetGenre(ctx context.Context, id int64) (Genre, error)
	ListGenres(ctx context.Context, page Page) ([]Genre, int, error)
	UpdateGenre(ctx context.Context, genre Genre) error
	DeleteGenre(ctx context.Context, id int64) error
	GetGenresByBooks(ctx context.Context, bookIDs []int64) (map[int64][]Genre, error)

	AddLanguage(ctx context.Context, language *Language) error
	GetLanguage(ctx context.Context, id int64) (Language, error)
	ListLanguages(ctx context.Context, page Page) ([]Language, int, error)
	UpdateLanguage(ctx context.Context, language Language) error
	DeleteLanguage(ctx context.Context, id int64) error
	GetLanguagesByIDs(ctx context.Context, ids []int64) (map[int64]Language, error)

	AddAuthor(ctx context.Context, author *Author) error
	GetAuthor(ctx context.Context, id int64) (Author, error)
	ListAuthors(ctx context.Context, page Page) ([]Author, int, error)
	UpdateAuthor(ctx context.Context, author Author) error
	DeleteAuthor(ctx context.Context, id int64) error
	GetAuthorsByIDs(ctx context.Context, ids []int64) (map[int64]Author, error)

	AddBook(ctx context.Context, book *Book) error
	GetBook(ctx context.Context, id int64) (Book, error)
	ListBooks(ctx context.Context, page Page) ([]Book, int, error)
	ListBooksByAuthor(ctx context.Context, authorID int64) ([]Book, error)
	UpdateBook(ctx context.Context, book Book) error
	DeleteBook(ctx context.Context, id int64) error
	GetBooksByIDs(ctx context.Context, ids []int64) (map[int64]Book, error)

	AddBookInstance(ctx context.Context, instance *BookInstance) error
	GetBookInstance(ctx context.Context, id string) (BookInstance, error)
	ListBookInstances(ctx context.Context, filter InstanceFilter, page Page) ([]BookInstance, int, error)
	UpdateBookInstance(ctx context.Context, instance BookInstance) error
	DeleteBookInstance(ctx context.Context, id string) error

	AddUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]User, error)
	DeleteUser(ctx context.Context, id int64) error

	ResetSequences(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
