// Package view renders the server-side form fragments and gates their
// controls with the access policy before they leave the server.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/web"
)

var formFiles = map[access.Module]string{
	access.ModuleLocations:      "locations.html",
	access.ModuleVendors:        "vendors.html",
	access.ModuleMachines:       "machines.html",
	access.ModuleUsers:          "users.html",
	access.ModuleAudit:          "audit.html",
	access.ModuleMSP:            "msp.html",
	access.ModuleSilver:         "silver.html",
	access.ModuleSilverPurchase: "silver_purchase.html",
}

// Engine renders form templates.
type Engine struct {
	templates *template.Template
	policy    access.Policy
}

// FormData contains values shared across form templates. DateBounded limits
// date pickers to the edit window and is set from the role.
type FormData struct {
	Module      access.Module
	Date        string
	Today       string
	Yesterday   string
	DateBounded bool
	CSRFToken   string
	Roles       []access.Role
}

// NewEngine parses the embedded form fragments.
func NewEngine(policy access.Policy) (*Engine, error) {
	tpl, err := template.New("root").ParseFS(web.Forms, "forms/*.html")
	if err != nil {
		return nil, err
	}
	for module, name := range formFiles {
		if tpl.Lookup(name) == nil {
			return nil, fmt.Errorf("view: missing form %s for %s", name, module)
		}
	}
	return &Engine{templates: tpl, policy: policy}, nil
}

// HasForm reports whether module has a form fragment.
func (e *Engine) HasForm(module access.Module) bool {
	_, ok := formFiles[module]
	return ok
}

// RenderForm executes the module's form, applies the role's edit rights for
// data.Date to every control, and writes the result. It returns whether the
// form was left editable.
func (e *Engine) RenderForm(w io.Writer, role access.Role, data FormData) (bool, error) {
	if e == nil {
		return false, fmt.Errorf("template engine not initialised")
	}
	name, ok := formFiles[data.Module]
	if !ok {
		return false, fmt.Errorf("view: no form for module %s", data.Module)
	}
	data.Today, data.Yesterday = e.policy.EditWindow()
	data.DateBounded = access.IsDateRestricted(role)
	if data.Roles == nil {
		data.Roles = access.Roles()
	}

	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return false, err
	}
	scope, err := access.ParseHTMLScope(&buf)
	if err != nil {
		return false, err
	}
	allowed := e.policy.ApplyModulePermissions(role, data.Module, scope, data.Date)
	return allowed, scope.Render(w)
}
