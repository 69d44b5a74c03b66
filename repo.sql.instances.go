package main

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

var instanceColumns = []interface{}{"id", "book_id", "borrower_id", "imprint", "due_back", "status"}

func instanceRecord(instance *BookInstance) goqu.Record {
	return goqu.Record{
		"id":          instance.ID,
		"book_id":     nullable(instance.BookID),
		"borrower_id": nullable(instance.BorrowerID),
		"imprint":     instance.Imprint,
		"due_back":    nullableDate(instance.DueBack),
		"status":      string(instance.Status),
	}
}

// AddBookInstance stores a copy. The id must be set by the caller.
func (s *sqlCatalogStorage) AddBookInstance(ctx context.Context, instance *BookInstance) error {
	query, args, err := s.dialect.Insert(tableBookInstance).Prepared(true).Rows(instanceRecord(instance)).ToSQL()
	if err != nil {
		return err
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return s.translateError(err, opWrite)
	}
	return nil
}

func (s *sqlCatalogStorage) GetBookInstance(ctx context.Context, id string) (BookInstance, error) {
	var instance BookInstance
	err := s.get(ctx, s.db, &instance, s.dialect.From(tableBookInstance).Select(instanceColumns...).Where(goqu.C("id").Eq(id)))
	return instance, err
}

// instanceConditions builds the where clause of the filter.
func instanceConditions(filter InstanceFilter) []exp.Expression {
	var conds []exp.Expression
	if filter.Status != nil {
		conds = append(conds, goqu.C("status").Eq(string(*filter.Status)))
	}
	if filter.DueFrom.Valid {
		conds = append(conds, goqu.C("due_back").Gte(filter.DueFrom.String()))
	}
	if filter.DueBefore.Valid {
		conds = append(conds, goqu.C("due_back").Lt(filter.DueBefore.String()))
	}
	if filter.HasDueBack != nil {
		if *filter.HasDueBack {
			conds = append(conds, goqu.C("due_back").IsNotNull())
		} else {
			conds = append(conds, goqu.C("due_back").IsNull())
		}
	}
	if filter.BookID != nil {
		conds = append(conds, goqu.C("book_id").Eq(*filter.BookID))
	}
	if filter.BorrowerID != nil {
		conds = append(conds, goqu.C("borrower_id").Eq(*filter.BorrowerID))
	}
	return conds
}

// ListBookInstances returns the copies matching the filter ordered by due
// date, copies without due date last.
func (s *sqlCatalogStorage) ListBookInstances(ctx context.Context, filter InstanceFilter, page Page) ([]BookInstance, int, error) {
	ds := s.dialect.From(tableBookInstance).Select(instanceColumns...).
		Where(instanceConditions(filter)...).
		Order(
			goqu.L("CASE WHEN due_back IS NULL THEN 1 ELSE 0 END").Asc(),
			goqu.C("due_back").Asc(),
			goqu.C("id").Asc(),
		)
	total, err := s.count(ctx, ds)
	if err != nil {
		return nil, 0, err
	}
	instances := []BookInstance{}
	err = s.selectAll(ctx, &instances, paginate(ds, page))
	return instances, total, err
}

func (s *sqlCatalogStorage) UpdateBookInstance(ctx context.Context, instance BookInstance) error {
	record := instanceRecord(&instance)
	delete(record, "id")
	ds := s.dialect.Update(tableBookInstance).Prepared(true).Set(record).Where(goqu.C("id").Eq(instance.ID))
	return s.exec(ctx, s.db, opWrite, ds, tableBookInstance, instance.ID)
}

func (s *sqlCatalogStorage) DeleteBookInstance(ctx context.Context, id string) error {
	ds := s.dialect.Delete(tableBookInstance).Prepared(true).Where(goqu.C("id").Eq(id))
	return s.exec(ctx, s.db, opDelete, ds, tableBookInstance, id)
}

var userColumns = []interface{}{"id", "username", "password", "is_staff", "is_active"}

func (s *sqlCatalogStorage) AddUser(ctx context.Context, user *User) error {
	record := goqu.Record{
		"username":  user.Username,
		"password":  user.PasswordHash,
		"is_staff":  user.IsStaff,
		"is_active": user.IsActive,
	}
	if user.ID != 0 {
		record["id"] = user.ID
	}
	id, err := s.insert(ctx, s.db, tableUser, record)
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (s *sqlCatalogStorage) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := s.get(ctx, s.db, &user, s.dialect.From(tableUser).Select(userColumns...).Where(goqu.C("id").Eq(id)))
	return user, err
}

func (s *sqlCatalogStorage) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := s.get(ctx, s.db, &user, s.dialect.From(tableUser).Select(userColumns...).Where(goqu.C("username").Eq(username)))
	return user, err
}

// DeleteUser removes the account. Copies it borrowed keep no borrower.
func (s *sqlCatalogStorage) DeleteUser(ctx context.Context, id int64) error {
	ds := s.dialect.Delete(tableUser).Prepared(true).Where(goqu.C("id").Eq(id))
	return s.exec(ctx, s.db, opDelete, ds, tableUser, id)
}

func (s *sqlCatalogStorage) GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]User, error) {
	result := make(map[int64]User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []User
	if err := s.selectAll(ctx, &users, s.dialect.From(tableUser).Select(userColumns...).Where(goqu.C("id").In(ids))); err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}
