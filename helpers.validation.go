package main

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// ValidationErrors maps a field name to the problems found on its value.
// Non field errors are reported under the "__all__" key.
type ValidationErrors map[string][]string

// NonFieldErrors is the key of errors not tied to a single field.
const NonFieldErrors = "__all__"

func (ve ValidationErrors) Error() string {
	fields := make([]string, 0, len(ve))
	for f := range ve {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(ve[f], " "))
	}
	return "invalid data: " + strings.Join(parts, "; ")
}

// Add records a problem on field.
func (ve ValidationErrors) Add(field, msg string) {
	ve[field] = append(ve[field], msg)
}

// Err returns nil when no problem was recorded.
func (ve ValidationErrors) Err() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

// RequireString strips the surrounding spaces of a mandatory text field in
// place then checks it is not empty and fits maxLength.
func (ve ValidationErrors) RequireString(field string, value *string, maxLength int) {
	*value = strings.TrimSpace(*value)
	if *value == "" {
		ve.Add(field, "This field is required.")
		return
	}
	ve.MaxLength(field, *value, maxLength)
}

// MaxLength checks the value is at most maxLength characters long.
func (ve ValidationErrors) MaxLength(field, value string, maxLength int) {
	if n := utf8.RuneCountInString(value); n > maxLength {
		ve.Add(field, fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", maxLength, n))
	}
}

// RequireRef checks a mandatory foreign key is set.
func (ve ValidationErrors) RequireRef(field string, id *int64) {
	if id == nil || *id <= 0 {
		ve.Add(field, "This field is required.")
	}
}

// InvalidChoice records a value which is not one of the available choices.
func (ve ValidationErrors) InvalidChoice(field, value string) {
	ve.Add(field, fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", value))
}
