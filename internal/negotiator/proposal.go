package negotiator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"pcbuild-service/internal/common/validation"
	"pcbuild-service/internal/models"
	"pcbuild-service/internal/oracle"
)

var proposalSchema = validation.MustCompile(buildProposalSchema())

func buildProposalSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(models.RequiredCategories))
	for _, c := range models.RequiredCategories {
		properties[string(c)] = map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		}
	}
	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"required":             models.CategoryNames(),
		"additionalProperties": false,
	}
}

// ParseError explains why a reply is not a usable proposal.
type ParseError struct {
	Reason    string
	Missing   []models.Category
	Extra     []string
	Empty     []models.Category
	Duplicate []string
}

func (e *ParseError) Error() string {
	var parts []string
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+joinCategories(e.Missing))
	}
	if len(e.Empty) > 0 {
		parts = append(parts, "empty "+joinCategories(e.Empty))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ", "))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "duplicate "+strings.Join(e.Duplicate, ", "))
	}
	if len(parts) == 0 {
		return "malformed proposal"
	}
	return "malformed proposal: " + strings.Join(parts, "; ")
}

// ParseResult is either a complete proposal or the reason there is none.
type ParseResult struct {
	Build models.ProposedBuild
	Err   *ParseError
}

func (r ParseResult) OK() bool {
	return r.Err == nil
}

// ParseProposal decodes an oracle reply into a ProposedBuild. It never panics;
// every failure is reported through ParseResult.Err.
func ParseProposal(reply string) ParseResult {
	raw, ok := oracle.ExtractJSONObject(reply)
	if !ok {
		return ParseResult{Err: &ParseError{Reason: "no JSON object found"}}
	}

	if dups, err := duplicateKeys(raw); err != nil {
		return ParseResult{Err: &ParseError{Reason: "invalid JSON: " + err.Error()}}
	} else if len(dups) > 0 {
		return ParseResult{Err: &ParseError{Duplicate: dups}}
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ParseResult{Err: &ParseError{Reason: "invalid JSON: " + err.Error()}}
	}

	result, err := proposalSchema.Validate(doc)
	if err != nil {
		return ParseResult{Err: &ParseError{Reason: err.Error()}}
	}
	var pe *ParseError
	if !result.Valid {
		pe = schemaParseError(result)
	}

	build := make(models.ProposedBuild, len(models.RequiredCategories))
	for _, c := range models.RequiredCategories {
		s, _ := doc[string(c)].(string)
		if _, present := doc[string(c)]; present && strings.TrimSpace(s) == "" {
			if pe == nil {
				pe = &ParseError{}
			}
			if !containsCategory(pe.Empty, c) {
				pe.Empty = append(pe.Empty, c)
			}
		}
		build[c] = strings.TrimSpace(s)
	}
	if pe != nil {
		sortCategories(pe.Empty)
		return ParseResult{Err: pe}
	}
	return ParseResult{Build: build}
}

func schemaParseError(result *validation.ValidationResult) *ParseError {
	pe := &ParseError{}
	seen := make(map[string]bool)
	var other []string

	for _, ve := range result.Errors {
		key := ve.Code + "|" + ve.Field
		if seen[key] {
			continue
		}
		seen[key] = true

		switch ve.Code {
		case "REQUIRED":
			pe.Missing = append(pe.Missing, models.Category(ve.Field))
		case "ADDITIONAL_PROPERTY_NOT_ALLOWED":
			pe.Extra = append(pe.Extra, ve.Field)
		case "STRING_GTE", "INVALID_TYPE":
			if ve.Field == "(root)" {
				other = append(other, "reply is not a JSON object")
				continue
			}
			if !containsCategory(pe.Empty, models.Category(ve.Field)) {
				pe.Empty = append(pe.Empty, models.Category(ve.Field))
			}
		default:
			other = append(other, ve.Message)
		}
	}

	sortCategories(pe.Missing)
	sortCategories(pe.Empty)
	sort.Strings(pe.Extra)
	pe.Reason = strings.Join(other, "; ")
	return pe
}

// duplicateKeys walks the top-level object; encoding/json keeps the last
// value for a repeated key and would hide the ambiguity.
func duplicateKeys(raw string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object")
	}

	seen := make(map[string]bool)
	var dups []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		if seen[key] {
			dups = append(dups, key)
		}
		seen[key] = true

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return dups, nil
}

func containsCategory(list []models.Category, c models.Category) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

// sortCategories orders by the canonical category order.
func sortCategories(list []models.Category) {
	rank := make(map[models.Category]int, len(models.RequiredCategories))
	for i, c := range models.RequiredCategories {
		rank[c] = i
	}
	sort.SliceStable(list, func(i, j int) bool {
		ri, okI := rank[list[i]]
		rj, okJ := rank[list[j]]
		if !okI {
			ri = len(rank)
		}
		if !okJ {
			rj = len(rank)
		}
		return ri < rj
	})
}

func joinCategories(list []models.Category) string {
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
