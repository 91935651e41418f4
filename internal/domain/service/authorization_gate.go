package service

import (
	"fmt"

	"github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
)

// Denial reasons returned to the model as function results.
const (
	ReasonAuthRequired     = "authentication required"
	ReasonPermissionDenied = "permission denied"
)

// DeniedError is an authorization refusal. It is data for the model, not a failure.
type DeniedError struct {
	Tool   string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Reason)
}

// Grant is an Allowed decision. Only the gate can mint one, and the domain
// query service only accepts requests built from a grant.
type Grant struct {
	decl    tool.Declaration
	scoped  bool
	scopeID int64
}

// Tool returns the granted declaration.
func (g Grant) Tool() tool.Declaration { return g.decl }

// Scoped reports whether arguments are narrowed to the caller.
func (g Grant) Scoped() bool { return g.scoped }

// ScopeID returns the dentist id forced onto scoped calls.
func (g Grant) ScopeID() int64 { return g.scopeID }

// Request applies the scope override to args and builds the query request.
// Any model-supplied dentist id is overwritten for scoped grants.
func (g Grant) Request(args map[string]interface{}) QueryRequest {
	out := make(map[string]interface{}, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	if g.scoped {
		out[tool.ScopeArg] = g.scopeID
	}
	return QueryRequest{tool: g.decl.Name, args: out}
}

// QueryRequest is a gate-approved call against the domain query service.
type QueryRequest struct {
	tool string
	args map[string]interface{}
}

// Tool returns the tool name, empty for a zero request.
func (r QueryRequest) Tool() string { return r.tool }

// Args returns a copy of the effective arguments.
func (r QueryRequest) Args() map[string]interface{} {
	out := make(map[string]interface{}, len(r.args))
	for k, v := range r.args {
		out[k] = v
	}
	return out
}

// Valid reports whether the request came from a grant.
func (r QueryRequest) Valid() bool { return r.tool != "" }

// AuthorizationGate is the single enforcement point for tool access.
type AuthorizationGate struct {
	catalog *tool.Catalog
}

// NewAuthorizationGate creates a gate over the static catalog.
func NewAuthorizationGate(catalog *tool.Catalog) *AuthorizationGate {
	return &AuthorizationGate{catalog: catalog}
}

// Authorize decides whether caller may invoke the named tool.
//
// Rules in order: authentication, admin-only, dentist-personal, role-scoped
// narrowing, then unscoped allow.
func (g *AuthorizationGate) Authorize(name string, caller valueobject.Caller) (Grant, error) {
	decl, ok := g.catalog.Get(name)
	if !ok {
		return Grant{}, &DeniedError{Tool: name, Reason: fmt.Sprintf("unknown tool: %s", name)}
	}

	if decl.Auth.RequiresAuth() && caller.IsGuest() {
		return Grant{}, &DeniedError{Tool: name, Reason: ReasonAuthRequired}
	}

	switch decl.Auth {
	case tool.AuthAdmin:
		if !caller.IsAdmin() {
			return Grant{}, &DeniedError{Tool: name, Reason: ReasonPermissionDenied}
		}
	case tool.AuthDentistPersonal:
		if !caller.IsDentist() {
			return Grant{}, &DeniedError{Tool: name, Reason: personalToolHint(decl, caller)}
		}
		return Grant{decl: decl, scoped: true, scopeID: caller.DentistID()}, nil
	case tool.AuthRoleScoped:
		switch {
		case caller.IsAdmin():
			return Grant{decl: decl}, nil
		case caller.IsDentist():
			return Grant{decl: decl, scoped: true, scopeID: caller.DentistID()}, nil
		default:
			// Clinical records are for clinic staff; other accounts get nothing to narrow to.
			return Grant{}, &DeniedError{Tool: name, Reason: ReasonPermissionDenied}
		}
	}

	return Grant{decl: decl}, nil
}

func personalToolHint(decl tool.Declaration, caller valueobject.Caller) string {
	if caller.IsAdmin() && decl.AdminAlternative != "" {
		return fmt.Sprintf("%s: administrators have no personal records, use %s instead", ReasonPermissionDenied, decl.AdminAlternative)
	}
	return fmt.Sprintf("%s: this tool is only available to dentists", ReasonPermissionDenied)
}
