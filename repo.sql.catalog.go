package main

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

func (s *sqlCatalogStorage) AddGenre(ctx context.Context, genre *Genre) error {
	record := goqu.Record{"name": genre.Name}
	if genre.ID != 0 {
		record["id"] = genre.ID
	}
	id, err := s.insert(ctx, s.db, tableGenre, record)
	if err != nil {
		return err
	}
	genre.ID = id
	return nil
}

func (s *sqlCatalogStorage) GetGenre(ctx context.Context, id int64) (Genre, error) {
	var genre Genre
	err := s.get(ctx, s.db, &genre, s.dialect.From(tableGenre).Select("id", "name").Where(goqu.C("id").Eq(id)))
	return genre, err
}

func (s *sqlCatalogStorage) ListGenres(ctx context.Context, page Page) ([]Genre, int, error) {
	ds := s.dialect.From(tableGenre).Select("id", "name").Order(goqu.C("name").Asc(), goqu.C("id").Asc())
	total, err := s.count(ctx, ds)
	if err != nil {
		return nil, 0, err
	}
	genres := []Genre{}
	err = s.selectAll(ctx, &genres, paginate(ds, page))
	return genres, total, err
}

func (s *sqlCatalogStorage) UpdateGenre(ctx context.Context, genre Genre) error {
	ds := s.dialect.Update(tableGenre).Prepared(true).
		Set(goqu.Record{"name": genre.Name}).
		Where(goqu.C("id").Eq(genre.ID))
	return s.exec(ctx, s.db, opWrite, ds, tableGenre, genre.ID)
}

func (s *sqlCatalogStorage) DeleteGenre(ctx context.Context, id int64) error {
	ds := s.dialect.Delete(tableGenre).Prepared(true).Where(goqu.C("id").Eq(id))
	return s.exec(ctx, s.db, opDelete, ds, tableGenre, id)
}

type bookGenreRow struct {
	BookID int64 `db:"book_id"`
	Genre
}

// GetGenresByBooks returns the genres of each given book in their
// default ordering.
func (s *sqlCatalogStorage) GetGenresByBooks(ctx context.Context, bookIDs []int64) (map[int64][]Genre, error) {
	result := make(map[int64][]Genre, len(bookIDs))
	if len(bookIDs) == 0 {
		return result, nil
	}
	ds := s.dialect.From(goqu.T(tableBookGenre).As("bg")).
		Join(goqu.T(tableGenre).As("g"), goqu.On(goqu.I("g.id").Eq(goqu.I("bg.genre_id")))).
		Select(goqu.I("bg.book_id"), goqu.I("g.id"), goqu.I("g.name")).
		Where(goqu.I("bg.book_id").In(bookIDs)).
		Order(goqu.I("g.name").Asc(), goqu.I("g.id").Asc())
	var rows []bookGenreRow
	if err := s.selectAll(ctx, &rows, ds); err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.BookID] = append(result[row.BookID], row.Genre)
	}
	return result, nil
}

func (s *sqlCatalogStorage) AddLanguage(ctx context.Context, language *Language) error {
	record := goqu.Record{"name": language.Name}
	if language.ID != 0 {
		record["id"] = language.ID
	}
	id, err := s.insert(ctx, s.db, tableLanguage, record)
	if err != nil {
		return err
	}
	language.ID = id
	return nil
}

func (s *sqlCatalogStorage) GetLanguage(ctx context.Context, id int64) (Language, error) {
	var language Language
	err := s.get(ctx, s.db, &language, s.dialect.From(tableLanguage).Select("id", "name").Where(goqu.C("id").Eq(id)))
	return language, err
}

func (s *sqlCatalogStorage) ListLanguages(ctx context.Context, page Page) ([]Language, int, error) {
	ds := s.dialect.From(tableLanguage).Select("id", "name").Order(goqu.C("id").Asc())
	total, err := s.count(ctx, ds)
	if err != nil {
		return nil, 0, err
	}
	languages := []Language{}
	err = s.selectAll(ctx, &languages, paginate(ds, page))
	return languages, total, err
}

func (s *sqlCatalogStorage) UpdateLanguage(ctx context.Context, language Language) error {
	ds := s.dialect.Update(tableLanguage).Prepared(true).
		Set(goqu.Record{"name": language.Name}).
		Where(goqu.C("id").Eq(language.ID))
	return s.exec(ctx, s.db, opWrite, ds, tableLanguage, language.ID)
}

func (s *sqlCatalogStorage) DeleteLanguage(ctx context.Context, id int64) error {
	ds := s.dialect.Delete(tableLanguage).Prepared(true).Where(goqu.C("id").Eq(id))
	return s.exec(ctx, s.db, opDelete, ds, tableLanguage, id)
}

func (s *sqlCatalogStorage) GetLanguagesByIDs(ctx context.Context, ids []int64) (map[int64]Language, error) {
	result := make(map[int64]Language, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var languages []Language
	if err := s.selectAll(ctx, &languages, s.dialect.From(tableLanguage).Select("id", "name").Where(goqu.C("id").In(ids))); err != nil {
		return nil, err
	}
	for _, l := range languages {
		result[l.ID] = l
	}
	return result, nil
}

var authorColumns = []interface{}{"id", "first_name", "last_name", "date_of_birth", "date_of_death"}

func authorRecord(author *Author) goqu.Record {
	record := goqu.Record{
		"first_name":    author.FirstName,
		"last_name":     author.LastName,
		"date_of_birth": nullableDate(author.DateOfBirth),
		"date_of_death": nullableDate(author.DateOfDeath),
	}
	if author.ID != 0 {
		record["id"] = author.ID
	}
	return record
}

func (s *sqlCatalogStorage) AddAuthor(ctx context.Context, author *Author) error {
	id, err := s.insert(ctx, s.db, tableAuthor, authorRecord(author))
	if err != nil {
		return err
	}
	author.ID = id
	return nil
}

func (s *sqlCatalogStorage) GetAuthor(ctx context.Context, id int64) (Author, error) {
	var author Author
	err := s.get(ctx, s.db, &author, s.dialect.From(tableAuthor).Select(authorColumns...).Where(goqu.C("id").Eq(id)))
	return author, err
}

func (s *sqlCatalogStorage) ListAuthors(ctx context.Context, page Page) ([]Author, int, error) {
	ds := s.dialect.From(tableAuthor).Select(authorColumns...).
		Order(goqu.C("last_name").Asc(), goqu.C("first_name").Asc(), goqu.C("id").Asc())
	total, err := s.count(ctx, ds)
	if err != nil {
		return nil, 0, err
	}
	authors := []Author{}
	err = s.selectAll(ctx, &authors, paginate(ds, page))
	return authors, total, err
}

func (s *sqlCatalogStorage) UpdateAuthor(ctx context.Context, author Author) error {
	record := authorRecord(&author)
	delete(record, "id")
	ds := s.dialect.Update(tableAuthor).Prepared(true).Set(record).Where(goqu.C("id").Eq(author.ID))
	return s.exec(ctx, s.db, opWrite, ds, tableAuthor, author.ID)
}

func (s *sqlCatalogStorage) DeleteAuthor(ctx context.Context, id int64) error {
	ds := s.dialect.Delete(tableAuthor).Prepared(true).Where(goqu.C("id").Eq(id))
	return s.exec(ctx, s.db, opDelete, ds, tableAuthor, id)
}

func (s *sqlCatalogStorage) GetAuthorsByIDs(ctx context.Context, ids []int64) (map[int64]Author, error) {
	result := make(map[int64]Author, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var authors []Author
	if err := s.selectAll(ctx, &authors, s.dialect.From(tableAuthor).Select(authorColumns...).Where(goqu.C("id").In(ids))); err != nil {
		return nil, err
	}
	for _, a := range authors {
		result[a.ID] = a
	}
	return result, nil
}

var bookColumns = []interface{}{"id", "title", "author_id", "summary", "isbn", "language_id"}

func bookRecord(book *Book) goqu.Record {
	record := goqu.Record{
		"title":       book.Title,
		"author_id":   nullable(book.AuthorID),
		"summary":     book.Summary,
		"isbn":        book.ISBN,
		"language_id": nullable(book.LanguageID),
	}
	if book.ID != 0 {
		record["id"] = book.ID
	}
	return record
}

// setBookGenres replaces the genres of the book.
func (s *sqlCatalogStorage) setBookGenres(ctx context.Context, ex sqlx.ExtContext, bookID int64, genreIDs []int64) error {
	del := s.dialect.Delete(tableBookGenre).Prepared(true).Where(goqu.C("book_id").Eq(bookID))
	query, args, err := del.ToSQL()
	if err != nil {
		return err
	}
	if _, err = ex.ExecContext(ctx, query, args...); err != nil {
		return s.translateError(err, opWrite)
	}
	if len(genreIDs) == 0 {
		return nil
	}

	seen := make(map[int64]bool, len(genreIDs))
	rows := make([]interface{}, 0, len(genreIDs))
	for _, id := range genreIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, goqu.Record{"book_id": bookID, "genre_id": id})
	}
	query, args, err = s.dialect.Insert(tableBookGenre).Prepared(true).Rows(rows...).ToSQL()
	if err != nil {
		return err
	}
	if _, err = ex.ExecContext(ctx, query, args...); err != nil {
		return s.translateError(err, opWrite)
	}
	return nil
}

// attachGenres loads the genres of the books in place.
func (s *sqlCatalogStorage) attachGenres(ctx context.Context, books []Book) error {
	ids := make([]int64, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	genres, err := s.GetGenresByBooks(ctx, ids)
	if err != nil {
		return err
	}
	for i := range books {
		books[i].Genres = genres[books[i].ID]
		books[i].GenreIDs = make([]int64, 0, len(books[i].Genres))
		for _, g := range books[i].Genres {
			books[i].GenreIDs = append(books[i].GenreIDs, g.ID)
		}
	}
	return nil
}

func (s *sqlCatalogStorage) AddBook(ctx context.Context, book *Book) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.insert(ctx, tx, tableBook, bookRecord(book))
		if err != nil {
			return err
		}
		if err = s.setBookGenres(ctx, tx, id, book.GenreIDs); err != nil {
			return err
		}
		book.ID = id
		return nil
	})
}

func (s *sqlCatalogStorage) GetBook(ctx context.Context, id int64) (Book, error) {
	var book Book
	if err := s.get(ctx, s.db, &book, s.dialect.From(tableBook).Select(bookColumns...).Where(goqu.C("id").Eq(id))); err != nil {
		return book, err
	}
	books := []Book{book}
	err := s.attachGenres(ctx, books)
	return books[0], err
}

func (s *sqlCatalogStorage) ListBooks(ctx context.Context, page Page) ([]Book, int, error) {
	ds := s.dialect.From(tableBook).Select(bookColumns...).Order(goqu.C("id").Asc())
	total, err := s.count(ctx, ds)
	if err != nil {
		return nil, 0, err
	}
	books := []Book{}
	if err = s.selectAll(ctx, &books, paginate(ds, page)); err != nil {
		return nil, 0, err
	}
	return books, total, s.attachGenres(ctx, books)
}

func (s *sqlCatalogStorage) ListBooksByAuthor(ctx context.Context, authorID int64) ([]Book, error) {
	ds := s.dialect.From(tableBook).Select(bookColumns...).
		Where(goqu.C("author_id").Eq(authorID)).
		Order(goqu.C("id").Asc())
	books := []Book{}
	if err := s.selectAll(ctx, &books, ds); err != nil {
		return nil, err
	}
	return books, s.attachGenres(ctx, books)
}

func (s *sqlCatalogStorage) UpdateBook(ctx context.Context, book Book) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		record := bookRecord(&book)
		delete(record, "id")
		ds := s.dialect.Update(tableBook).Prepared(true).Set(record).Where(goqu.C("id").Eq(book.ID))
		if err := s.exec(ctx, tx, opWrite, ds, tableBook, book.ID); err != nil {
			return err
		}
		return s.setBookGenres(ctx, tx, book.ID, book.GenreIDs)
	})
}

func (s *sqlCatalogStorage) DeleteBook(ctx context.Context, id int64) error {
	ds := s.dialect.Delete(tableBook).Prepared(true).Where(goqu.C("id").Eq(id))
	return s.exec(ctx, s.db, opDelete, ds, tableBook, id)
}

func (s *sqlCatalogStorage) GetBooksByIDs(ctx context.Context, ids []int64) (map[int64]Book, error) {
	result := make(map[int64]Book, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var books []Book
	if err := s.selectAll(ctx, &books, s.dialect.From(tableBook).Select(bookColumns...).Where(goqu.C("id").In(ids))); err != nil {
		return nil, err
	}
	if err := s.attachGenres(ctx, books); err != nil {
		return nil, err
	}
	for _, b := range books {
		result[b.ID] = b
	}
	return result, nil
}
