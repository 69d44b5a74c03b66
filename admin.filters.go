package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// listFilter narrows a book instances changelist from query parameters.
type listFilter interface {
	Params() []string
	Apply(params url.Values, filter *InstanceFilter) error
	Spec(params url.Values) FilterSpec
}

// choiceQuery builds the query string selecting a filter choice while
// keeping the other filters. Paging restarts from the first page.
func choiceQuery(params url.Values, own []string, choice map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Del(PageParam)
	for _, k := range own {
		q.Del(k)
	}
	for k, v := range choice {
		q.Set(k, v)
	}
	if len(q) == 0 {
		return "?"
	}
	return "?" + q.Encode()
}

// selected reports whether the params hold exactly the choice values.
func selected(params url.Values, own []string, choice map[string]string) bool {
	for _, k := range own {
		want, in := choice[k]
		_, has := params[k]
		if in != has || (has && params.Get(k) != want) {
			return false
		}
	}
	return true
}

type statusFilter struct{}

const statusParam = "status__exact"

func (statusFilter) Params() []string { return []string{statusParam} }

func (statusFilter) Apply(params url.Values, filter *InstanceFilter) error {
	if _, ok := params[statusParam]; !ok {
		return nil
	}
	status := LoanStatus(params.Get(statusParam))
	if !status.IsValid() {
		return fmt.Errorf("%w: status %q", ErrInvalidFilter, status)
	}
	filter.Status = &status
	return nil
}

func (f statusFilter) Spec(params url.Values) FilterSpec {
	own := f.Params()
	spec := FilterSpec{Field: "status", Title: "status"}
	all := map[string]string{}
	spec.Choices = append(spec.Choices, FilterChoice{
		Label:    "All",
		Query:    choiceQuery(params, own, all),
		Selected: selected(params, own, all),
	})
	for _, c := range LoanStatusChoices {
		choice := map[string]string{statusParam: c.Value}
		spec.Choices = append(spec.Choices, FilterChoice{
			Label:    c.Label,
			Query:    choiceQuery(params, own, choice),
			Selected: selected(params, own, choice),
		})
	}
	return spec
}

// dateFilter offers the usual date ranges of a nullable date field.
// Ranges are half-open: the upper bound is excluded.
type dateFilter struct {
	field string
	title string
	clock Clocker
}

func (f dateFilter) gte() string    { return f.field + "__gte" }
func (f dateFilter) lt() string     { return f.field + "__lt" }
func (f dateFilter) isnull() string { return f.field + "__isnull" }

func (f dateFilter) Params() []string { return []string{f.gte(), f.lt(), f.isnull()} }

func (f dateFilter) Apply(params url.Values, filter *InstanceFilter) error {
	parse := func(key string) (Date, error) {
		if _, ok := params[key]; !ok {
			return Date{}, nil
		}
		d, err := ParseDate(params.Get(key))
		if err != nil || !d.Valid {
			return Date{}, fmt.Errorf("%w: %s %q", ErrInvalidFilter, key, params.Get(key))
		}
		return d, nil
	}
	var err error
	if filter.DueFrom, err = parse(f.gte()); err != nil {
		return err
	}
	if filter.DueBefore, err = parse(f.lt()); err != nil {
		return err
	}
	if _, ok := params[f.isnull()]; ok {
		isNull, perr := strconv.ParseBool(params.Get(f.isnull()))
		if perr != nil {
			return fmt.Errorf("%w: %s %q", ErrInvalidFilter, f.isnull(), params.Get(f.isnull()))
		}
		hasDate := !isNull
		filter.HasDueBack = &hasDate
	}
	return nil
}

type dateChoice struct {
	label  string
	params map[string]string
}

func (f dateFilter) choices() []dateChoice {
	today := NewDate(f.clock.Now())
	tomorrow := today.AddDays(1)
	monthStart := Date{Time: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), Valid: true}
	nextMonth := Date{Time: monthStart.AddDate(0, 1, 0), Valid: true}
	yearStart := Date{Time: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), Valid: true}
	nextYear := Date{Time: yearStart.AddDate(1, 0, 0), Valid: true}
	between := func(from, to Date) map[string]string {
		return map[string]string{f.gte(): from.String(), f.lt(): to.String()}
	}
	return []dateChoice{
		{"Any date", map[string]string{}},
		{"Today", between(today, tomorrow)},
		{"Past 7 days", between(today.AddDays(-7), tomorrow)},
		{"This month", between(monthStart, nextMonth)},
		{"This year", between(yearStart, nextYear)},
		{"No date", map[string]string{f.isnull(): "True"}},
		{"Has date", map[string]string{f.isnull(): "False"}},
	}
}

func (f dateFilter) Spec(params url.Values) FilterSpec {
	own := f.Params()
	spec := FilterSpec{Field: f.field, Title: f.title}
	for _, c := range f.choices() {
		spec.Choices = append(spec.Choices, FilterChoice{
			Label:    c.label,
			Query:    choiceQuery(params, own, c.params),
			Selected: selected(params, own, c.params),
		})
	}
	return spec
}
