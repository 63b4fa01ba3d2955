// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared by all repair functions. Field names in errors
// report the wire (json) name, matching what the planner emitted.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError is a structured args-validation failure. It never
// reaches a user; repair either recovers or the call is dropped.
type ValidationError struct {
	// Tool is the tool whose args failed validation.
	Tool string

	// Field is the offending argument name.
	Field string

	// Reason is a short machine-friendly reason.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s: argument %s %s", e.Tool, e.Field, e.Reason)
}

// LocalSearchArgs are the normalized primary-retrieval arguments.
type LocalSearchArgs struct {
	Query        string   `json:"query" validate:"required"`
	SalientTerms []string `json:"salientTerms" validate:"required,min=1,dive,required"`
}

// TitleLookupArgs are the normalized title-lookup arguments.
type TitleLookupArgs struct {
	Query string `json:"query" validate:"required"`
}

// ReadNoteArgs are the normalized direct-read arguments.
type ReadNoteArgs struct {
	Path string `json:"path" validate:"required"`
}

// RepairLocalSearchArgs maps raw localSearch args to normalized args.
//
// Description:
//
//	Pure and silent recovery of malformed planner output:
//	  - missing/empty query        -> the raw user message
//	  - salientTerms as bare string -> tokenized into an array
//	  - salientTerms missing/empty  -> tokenized from the user message
//	Tokenization lowercases, splits on whitespace, dedupes, and drops
//	empties. The result always passes schema validation when the user
//	message is non-empty.
//
// Inputs:
//
//	raw - The planner-supplied args; may be nil.
//	userMessage - The raw user message, used as the repair fallback.
//
// Outputs:
//
//	LocalSearchArgs - The normalized args.
//	error - *ValidationError if repair could not produce valid args.
//
// Thread Safety: Safe for concurrent use (pure function).
func RepairLocalSearchArgs(raw map[string]any, userMessage string) (LocalSearchArgs, error) {
	args := LocalSearchArgs{
		Query:        stringArg(raw, "query"),
		SalientTerms: termsArg(raw, "salientTerms"),
	}

	if strings.TrimSpace(args.Query) == "" {
		args.Query = userMessage
	}
	if len(args.SalientTerms) == 0 {
		args.SalientTerms = tokenize(args.Query)
	}

	if err := validate.Struct(args); err != nil {
		return LocalSearchArgs{}, firstViolation("localSearch", err)
	}
	return args, nil
}

// RepairTitleLookupArgs maps raw findNotesByTitle args to normalized args.
func RepairTitleLookupArgs(raw map[string]any, userMessage string) (TitleLookupArgs, error) {
	args := TitleLookupArgs{Query: stringArg(raw, "query")}
	if strings.TrimSpace(args.Query) == "" {
		args.Query = userMessage
	}
	if err := validate.Struct(args); err != nil {
		return TitleLookupArgs{}, firstViolation("findNotesByTitle", err)
	}
	return args, nil
}

// RepairReadNoteArgs maps raw readNote args to normalized args.
//
// There is no recovery for a missing path; the caller decides what a
// failed read-intent means.
func RepairReadNoteArgs(raw map[string]any) (ReadNoteArgs, error) {
	args := ReadNoteArgs{Path: stringArg(raw, "path")}
	if err := validate.Struct(args); err != nil {
		return ReadNoteArgs{}, firstViolation("readNote", err)
	}
	return args, nil
}

// stringArg extracts a string argument, tolerating absence.
func stringArg(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

// termsArg coerces the salientTerms argument into a clean string slice.
// Accepts a proper array, a bare string, or nothing.
func termsArg(raw map[string]any, key string) []string {
	if raw == nil {
		return nil
	}
	switch v := raw[key].(type) {
	case []string:
		return cleanTerms(v)
	case []any:
		terms := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				terms = append(terms, s)
			}
		}
		return cleanTerms(terms)
	case string:
		return tokenize(v)
	default:
		return nil
	}
}

// tokenize splits free text into deduplicated lowercase terms.
func tokenize(s string) []string {
	return cleanTerms(strings.Fields(s))
}

// cleanTerms lowercases, trims, dedupes, and drops empties.
func cleanTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

// firstViolation converts a validator error into a ValidationError.
func firstViolation(tool string, err error) *ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{
			Tool:   tool,
			Field:  verrs[0].Field(),
			Reason: fmt.Sprintf("failed %q validation", verrs[0].Tag()),
		}
	}
	return &ValidationError{Tool: tool, Field: "args", Reason: err.Error()}
}
