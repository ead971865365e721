// Package env carries the acting user, company and privilege level through
// every service call. It is passed explicitly rather than read from globals.
package env

import (
	"slices"

	"github.com/go-faster/errors"
)

// Well-known access groups.
const (
	GroupSaleUser = "sales_team.group_sale_salesman"
	GroupFSMUser  = "fieldservice.group_fsm_user"
)

// Model names used for access checks and message references.
const (
	ModelSaleOrder = "sale.order"
	ModelSaleLine  = "sale.order.line"
	ModelFSMOrder  = "fsm.order"
)

// ErrAccessDenied is returned when the acting user lacks the group required
// to write a model, or acts on a record of another company.
var ErrAccessDenied = errors.New("access denied")

// AccessError describes a denied operation on a specific model.
type AccessError struct {
	UserID  string
	Op      string
	Model   string
	Company string
}

func (e *AccessError) Error() string {
	msg := "user " + e.UserID + " may not " + e.Op + " " + e.Model
	if e.Company != "" {
		msg += " of company " + e.Company
	}
	return msg
}

// Unwrap lets errors.Is match ErrAccessDenied.
func (e *AccessError) Unwrap() error { return ErrAccessDenied }

var writeGroups = map[string]string{
	ModelSaleOrder: GroupSaleUser,
	ModelSaleLine:  GroupSaleUser,
	ModelFSMOrder:  GroupFSMUser,
}

// Env is the explicit execution context of a request.
type Env struct {
	UserID    string
	CompanyID string
	Groups    []string

	superuser bool
}

// New returns a regular, non-elevated Env.
func New(userID, companyID string, groups ...string) Env {
	return Env{UserID: userID, CompanyID: companyID, Groups: groups}
}

// Sudo returns a copy of e that bypasses access checks.
func (e Env) Sudo() Env {
	e.superuser = true
	return e
}

// IsSuperuser reports whether e bypasses access checks.
func (e Env) IsSuperuser() bool { return e.superuser }

// HasGroup reports whether e belongs to group.
func (e Env) HasGroup(group string) bool {
	return slices.Contains(e.Groups, group)
}

// CheckCreate returns an *AccessError when e may not create records of model.
func (e Env) CheckCreate(model string) error {
	return e.check("create", model)
}

// CheckWrite returns an *AccessError when e may not modify records of model.
func (e Env) CheckWrite(model string) error {
	return e.check("write", model)
}

// CheckCompany returns an *AccessError when a record of model owned by
// companyID lies outside the company of e. Records without a company are
// shared.
func (e Env) CheckCompany(model, companyID string) error {
	if e.superuser || companyID == "" || companyID == e.CompanyID {
		return nil
	}
	return &AccessError{UserID: e.UserID, Op: "access", Model: model, Company: companyID}
}

func (e Env) check(op, model string) error {
	if e.superuser {
		return nil
	}
	group, ok := writeGroups[model]
	if !ok || e.HasGroup(group) {
		return nil
	}
	return &AccessError{UserID: e.UserID, Op: op, Model: model}
}
