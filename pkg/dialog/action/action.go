// Package action decodes button payloads into a closed set of typed actions.
// Raw strings are parsed once at the gateway; handlers match on Kind.
package action

import (
	"strconv"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota

	// delivery of generated transfer acts
	ActEmail
	ActEmailInput
	ActEmailOwners
	ActSkip

	BackToMain

	// search
	SearchAgain
	AddUnfound

	// unfound equipment intake
	UnfoundEmployee
	CreateNewEmployee
	RetryEmployeeInput
	UnfoundType
	UnfoundModel
	UnfoundBranch
	UnfoundLocation
	UnfoundStatus
	SkipField
	ConfirmUnfound
	CancelUnfound
	EditUnfound
	EditField
	BackToConfirmation

	// employee lookup
	EmployeeSearchPick
	EmployeePrev
	EmployeeNext

	// transfer
	TransferEmployee
	TransferEmployeeAdd
	TransferBranch
	TransferLocation
	ConfirmTransfer
	CancelTransfer

	// work log
	Work
	WorkBranch
	WorkLocation
	WorkModel
	CartridgeColor
	Component
	ConfirmWork
	CancelWork

	SelectDB
)

// Action is a decoded button payload. Arg carries the part after the namespace colon.
type Action struct {
	Kind Kind
	Arg  string
	Raw  string
}

// Index parses Arg as a candidate position.
func (a Action) Index() (int, bool) {
	i, err := strconv.Atoi(a.Arg)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

var exact = map[string]Kind{
	"act:email":            ActEmail,
	"act:email_input":      ActEmailInput,
	"act:email_owners":     ActEmailOwners,
	"act:skip":             ActSkip,
	"back_to_main":         BackToMain,
	"search_again":         SearchAgain,
	"add_unfound":          AddUnfound,
	"create_new_employee":  CreateNewEmployee,
	"retry_employee_input": RetryEmployeeInput,
	"confirm_unfound":      ConfirmUnfound,
	"cancel_unfound":       CancelUnfound,
	"edit_unfound":         EditUnfound,
	"back_to_confirmation": BackToConfirmation,
	"emp_prev":             EmployeePrev,
	"emp_next":             EmployeeNext,
	"confirm_transfer":     ConfirmTransfer,
	"cancel_transfer":      CancelTransfer,
	"confirm_work":         ConfirmWork,
	"cancel_work":          CancelWork,
}

var prefixed = map[string]Kind{
	"unfound_emp":         UnfoundEmployee,
	"unfound_type":        UnfoundType,
	"unfound_model":       UnfoundModel,
	"unfound_branch":      UnfoundBranch,
	"unfound_location":    UnfoundLocation,
	"unfound_status":      UnfoundStatus,
	"edit_field":          EditField,
	"employee_search_emp": EmployeeSearchPick,
	"transfer_emp":        TransferEmployee,
	"transfer_emp_add":    TransferEmployeeAdd,
	"transfer_branch":     TransferBranch,
	"transfer_location":   TransferLocation,
	"work":                Work,
	"work_branch":         WorkBranch,
	"work_location":       WorkLocation,
	"work_model":          WorkModel,
	"cartridge_color":     CartridgeColor,
	"component":           Component,
	"select_db":           SelectDB,
}

// Parse decodes a raw payload. Unrecognised payloads yield Kind Unknown.
func Parse(raw string) Action {
	raw = strings.TrimSpace(raw)
	if k, ok := exact[raw]; ok {
		return Action{Kind: k, Raw: raw}
	}
	if field, ok := strings.CutPrefix(raw, "skip_"); ok && field != "" {
		return Action{Kind: SkipField, Arg: field, Raw: raw}
	}
	if ns, arg, ok := strings.Cut(raw, ":"); ok {
		if k, known := prefixed[ns]; known {
			return Action{Kind: k, Arg: arg, Raw: raw}
		}
	}
	return Action{Kind: Unknown, Raw: raw}
}

// Encode builds the payload for a button. It is the inverse of Parse.
func Encode(k Kind, arg string) string {
	if k == SkipField {
		return "skip_" + arg
	}
	for raw, kind := range exact {
		if kind == k {
			return raw
		}
	}
	for ns, kind := range prefixed {
		if kind == k {
			return ns + ":" + arg
		}
	}
	return ""
}

// IndexArg formats a candidate position for Encode.
func IndexArg(i int) string {
	return strconv.Itoa(i)
}
