package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrInvalidPage = errors.New("invalid page")

type CatalogServiceProvider interface {
	ListBooks(ctx context.Context, page int) (ListView[BookView], error)
	GetBook(ctx context.Context, id int64) (BookView, error)
	ListAuthors(ctx context.Context, page int) (ListView[AuthorView], error)
	GetAuthor(ctx context.Context, id int64) (AuthorView, error)
	BorrowedBy(ctx context.Context, userID int64) ([]LoanView, error)

	Authenticate(ctx context.Context, username, password string) (User, error)
	LoadBooks(ctx context.Context, books []Book) error
	LoadInstances(ctx context.Context, instances []BookInstance) error
	RecordChange(ctx context.Context, user User, entry LogEntry) error
	Invalidate(ctx context.Context)
	RecentActions(ctx context.Context, limit int) ([]LogEntry, error)
	ObjectHistory(ctx context.Context, contentType, objectID string) ([]LogEntry, error)
}

type CatalogService struct {
	logger  *zap.Logger
	config  *Config
	clock   Clocker
	ids     UIDHandler
	storage CatalogStorage
	cache   Cacher
	queue   Queuer
	logs    LogEntryStorage
}

func NewCatalogService(
	logger *zap.Logger,
	config *Config,
	clock Clocker,
	ids UIDHandler,
	storage CatalogStorage,
	cache Cacher,
	queue Queuer,
	logs LogEntryStorage,
) *CatalogService {
	return &CatalogService{
		logger:  logger,
		config:  config,
		clock:   clock,
		ids:     ids,
		storage: storage,
		cache:   cache,
		queue:   queue,
		logs:    logs,
	}
}

func pageOf(page, perPage int) (Page, error) {
	if page < 1 {
		return Page{}, ErrInvalidPage
	}
	return Page{Offset: (page - 1) * perPage, Limit: perPage}, nil
}

// cached loads name from the cache or builds it with fill then caches it.
// The key is resolved once before fill so a view built across an
// invalidation is stored under the old generation.
// Cache failures are logged and never fail the request.
func (cs *CatalogService) cached(ctx context.Context, name string, dest interface{}, fill func() error) error {
	key, err := cs.cache.Key(ctx, name)
	if err != nil {
		cs.logger.Warn("service: failed to resolve cache key", zap.String("cache.key", name), zap.Error(err))
		return fill()
	}
	found, err := cs.cache.Get(ctx, key, dest)
	if err != nil {
		cs.logger.Warn("service: failed to read cache", zap.String("cache.key", key), zap.Error(err))
	}
	if found {
		return nil
	}
	if err = fill(); err != nil {
		return err
	}
	if err = cs.cache.Set(ctx, key, dest); err != nil {
		cs.logger.Warn("service: failed to write cache", zap.String("cache.key", key), zap.Error(err))
	}
	return nil
}

func (cs *CatalogService) ListBooks(ctx context.Context, page int) (ListView[BookView], error) {
	var view ListView[BookView]
	p, err := pageOf(page, CatalogPageSize)
	if err != nil {
		return view, err
	}
	err = cs.cached(ctx, fmt.Sprintf("books:%d", page), &view, func() error {
		books, total, err := cs.storage.ListBooks(ctx, p)
		if err != nil {
			return err
		}
		if len(books) == 0 && page > 1 {
			return ErrInvalidPage
		}
		if err = cs.LoadBooks(ctx, books); err != nil {
			return err
		}
		view = ListView[BookView]{Page: page, NumPages: NumPages(total, CatalogPageSize), Total: total, Items: make([]BookView, 0, len(books))}
		for _, b := range books {
			view.Items = append(view.Items, newBookView(b))
		}
		return nil
	})
	return view, err
}

// GetBook returns the book with its copies. Overdue flags are computed
// at read time so a cached view never carries a stale flag.
func (cs *CatalogService) GetBook(ctx context.Context, id int64) (BookView, error) {
	var view BookView
	err := cs.cached(ctx, fmt.Sprintf("book:%d", id), &view, func() error {
		book, err := cs.storage.GetBook(ctx, id)
		if err != nil {
			return err
		}
		books := []Book{book}
		if err = cs.LoadBooks(ctx, books); err != nil {
			return err
		}
		instances, _, err := cs.storage.ListBookInstances(ctx, InstanceFilter{BookID: &id}, Page{})
		if err != nil {
			return err
		}
		view = newBookView(books[0])
		for _, bi := range instances {
			view.Copies = append(view.Copies, newCopyView(bi, cs.clock.Now()))
		}
		return nil
	})
	if err != nil {
		return view, err
	}
	today := NewDate(cs.clock.Now())
	for i := range view.Copies {
		view.Copies[i].IsOverdue = view.Copies[i].DueBack.Valid && today.After(view.Copies[i].DueBack.Time)
	}
	return view, nil
}

func (cs *CatalogService) ListAuthors(ctx context.Context, page int) (ListView[AuthorView], error) {
	var view ListView[AuthorView]
	p, err := pageOf(page, CatalogPageSize)
	if err != nil {
		return view, err
	}
	err = cs.cached(ctx, fmt.Sprintf("authors:%d", page), &view, func() error {
		authors, total, err := cs.storage.ListAuthors(ctx, p)
		if err != nil {
			return err
		}
		if len(authors) == 0 && page > 1 {
			return ErrInvalidPage
		}
		view = ListView[AuthorView]{Page: page, NumPages: NumPages(total, CatalogPageSize), Total: total, Items: make([]AuthorView, 0, len(authors))}
		for _, a := range authors {
			view.Items = append(view.Items, newAuthorView(a))
		}
		return nil
	})
	return view, err
}

func (cs *CatalogService) GetAuthor(ctx context.Context, id int64) (AuthorView, error) {
	var view AuthorView
	err := cs.cached(ctx, fmt.Sprintf("author:%d", id), &view, func() error {
		author, err := cs.storage.GetAuthor(ctx, id)
		if err != nil {
			return err
		}
		books, err := cs.storage.ListBooksByAuthor(ctx, id)
		if err != nil {
			return err
		}
		view = newAuthorView(author)
		for i := range books {
			view.Books = append(view.Books, *bookRef(&books[i]))
		}
		return nil
	})
	return view, err
}

// BorrowedBy lists the copies on loan to the user, soonest due first.
func (cs *CatalogService) BorrowedBy(ctx context.Context, userID int64) ([]LoanView, error) {
	status := StatusOnLoan
	instances, _, err := cs.storage.ListBookInstances(ctx, InstanceFilter{Status: &status, BorrowerID: &userID}, Page{})
	if err != nil {
		return nil, err
	}
	if err = cs.LoadInstances(ctx, instances); err != nil {
		return nil, err
	}
	now := cs.clock.Now()
	loans := make([]LoanView, 0, len(instances))
	for _, bi := range instances {
		loans = append(loans, LoanView{
			ID:        bi.ID,
			Book:      bookRef(bi.Book),
			Imprint:   bi.Imprint,
			DueBack:   bi.DueBack,
			IsOverdue: bi.IsOverdue(now),
		})
	}
	return loans, nil
}

// Authenticate returns the active user matching the credentials.
func (cs *CatalogService) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := cs.storage.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err = CheckPassword(user.PasswordHash, password); err != nil || !user.IsActive {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// LoadBooks sets the author and language of the books.
func (cs *CatalogService) LoadBooks(ctx context.Context, books []Book) error {
	var authorIDs, languageIDs []int64
	for _, b := range books {
		if b.AuthorID != nil {
			authorIDs = append(authorIDs, *b.AuthorID)
		}
		if b.LanguageID != nil {
			languageIDs = append(languageIDs, *b.LanguageID)
		}
	}
	authors, err := cs.storage.GetAuthorsByIDs(ctx, authorIDs)
	if err != nil {
		return err
	}
	languages, err := cs.storage.GetLanguagesByIDs(ctx, languageIDs)
	if err != nil {
		return err
	}
	for i := range books {
		if books[i].AuthorID != nil {
			if a, ok := authors[*books[i].AuthorID]; ok {
				books[i].Author = &a
			}
		}
		if books[i].LanguageID != nil {
			if l, ok := languages[*books[i].LanguageID]; ok {
				books[i].Language = &l
			}
		}
	}
	return nil
}

// LoadInstances sets the book and borrower of the copies.
func (cs *CatalogService) LoadInstances(ctx context.Context, instances []BookInstance) error {
	var bookIDs, userIDs []int64
	for _, bi := range instances {
		if bi.BookID != nil {
			bookIDs = append(bookIDs, *bi.BookID)
		}
		if bi.BorrowerID != nil {
			userIDs = append(userIDs, *bi.BorrowerID)
		}
	}
	books, err := cs.storage.GetBooksByIDs(ctx, bookIDs)
	if err != nil {
		return err
	}
	users, err := cs.storage.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return err
	}
	for i := range instances {
		if instances[i].BookID != nil {
			if b, ok := books[*instances[i].BookID]; ok {
				instances[i].Book = &b
			}
		}
		if instances[i].BorrowerID != nil {
			if u, ok := users[*instances[i].BorrowerID]; ok {
				instances[i].Borrower = &u
			}
		}
	}
	return nil
}

// RecordChange queues the admin log entry of a change made by user and
// drops the cached views. The entry is stored directly if the queue is down.
func (cs *CatalogService) RecordChange(ctx context.Context, user User, entry LogEntry) error {
	entry.ID = cs.ids.Generate(LogEntryIDPrefix)
	entry.ActionTime = cs.clock.Now().UTC()
	entry.UserID = user.ID
	entry.Username = user.Username

	cs.Invalidate(ctx)

	err := cs.queue.Push(ctx, AdminLogQueue, entry)
	if err == nil {
		return nil
	}
	cs.logger.Error("service: failed to push log entry to queue", zap.String("qid", AdminLogQueue), zap.Error(err))
	if err = cs.logs.Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to store log entry: %w", err)
	}
	return nil
}

// Invalidate drops every cached catalog view.
func (cs *CatalogService) Invalidate(ctx context.Context) {
	if err := cs.cache.Invalidate(ctx); err != nil {
		cs.logger.Error("service: failed to invalidate cache", zap.Error(err))
	}
}

func (cs *CatalogService) RecentActions(ctx context.Context, limit int) ([]LogEntry, error) {
	return cs.logs.Recent(ctx, limit)
}

func (cs *CatalogService) ObjectHistory(ctx context.Context, contentType, objectID string) ([]LogEntry, error) {
	return cs.logs.ForObject(ctx, contentType, objectID)
}
