package types

import (
	"fmt"
	"sort"
)

type Severity string

const (
	SevError   Severity = "error"
	SevWarning Severity = "warning"
)

// Issue codes reported while parsing and composing.
const (
	CodeUnknownPrimitive     = "DATATYPE_001"
	CodeUnresolvedDatatype   = "DATATYPE_002"
	CodeBitLengthOverflow    = "DATATYPE_003"
	CodeVariableNoDatatype   = "PARAM_001"
	CodeUnknownStdVariable   = "PARAM_002"
	CodeBitLengthMismatch    = "PD_001"
	CodeOverlappingItems     = "PD_002"
	CodeItemOutOfRange       = "PD_003"
	CodeDanglingMenuRef      = "MENU_001"
	CodeDanglingVariableRef  = "MENU_002"
	CodeUnknownRoleMenu      = "MENU_003"
	CodeAssetNotBundled      = "ASSET_001"
	CodeMissingText          = "TEXT_001"
	CodeEDSUnknownType       = "EDS_001"
	CodeEDSMalformedEntry    = "EDS_002"
	CodeEDSUnknownParamRef   = "EDS_003"
	CodeEDSAssemblyTruncated = "EDS_004"
)

type Issue struct {
	Code     string         `json:"code"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Path     string         `json:"path,omitempty"` // JSON Pointer-ish ("/menus/M_Ident/items/2")
	Ref      string         `json:"ref,omitempty"`
	Hint     string         `json:"hint,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%s %s: %s", i.Code, i.Path, i.Message)
}

type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Report) AddError(i Issue) {
	if i.Severity == "" {
		i.Severity = SevError
	}
	r.Errors = append(r.Errors, i)
}

func (r *Report) AddWarning(i Issue) {
	if i.Severity == "" {
		i.Severity = SevWarning
	}
	r.Warnings = append(r.Warnings, i)
}

// Warnf is shorthand for the common code/path/message case.
func (r *Report) Warnf(code, path, format string, args ...any) {
	r.AddWarning(Issue{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) Merge(other Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Finalize orders issues deterministically and sets Valid. Issues sharing a
// path keep the order they were reported in.
func (r *Report) Finalize() {
	sortIssues(r.Errors)
	sortIssues(r.Warnings)
	if r.Errors == nil {
		r.Errors = []Issue{}
	}
	if r.Warnings == nil {
		r.Warnings = []Issue{}
	}
	r.Valid = len(r.Errors) == 0
}

func sortIssues(list []Issue) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Code < b.Code
	})
}
