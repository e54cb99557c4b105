package access

import "strings"

// Control is an interactive form element that can be switched on or off.
type Control interface {
	SetDisabled(disabled bool)
}

// Scope exposes every interactive control beneath a form root: inputs,
// selects, textareas and buttons at any depth.
type Scope interface {
	Controls() []Control
}

// ApplyModulePermissions enables every control in scope when role may edit
// module on selectedDate and disables every one otherwise. No control is
// exempt; callers needing exceptions re-enable them afterwards. It returns
// the decision it applied.
func (p Policy) ApplyModulePermissions(role Role, module Module, scope Scope, selectedDate string) bool {
	allowed := p.CanEdit(role, module, selectedDate)
	if scope == nil {
		return allowed
	}
	for _, control := range scope.Controls() {
		control.SetDisabled(!allowed)
	}
	return allowed
}

// ApplyModuleAccess is the older name for ApplyModulePermissions.
//
// Deprecated: use ApplyModulePermissions.
func (p Policy) ApplyModuleAccess(role Role, module Module, scope Scope, selectedDate string) bool {
	return p.ApplyModulePermissions(role, module, scope, selectedDate)
}

// IsInteractiveTag reports whether an element tag is one of the controls the
// permission helper toggles.
func IsInteractiveTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "input", "select", "textarea", "button":
		return true
	default:
		return false
	}
}

// Element is an in-memory form tree used by view models and JSON form
// descriptors.
type Element struct {
	Tag      string     `json:"tag"`
	Name     string     `json:"name,omitempty"`
	Label    string     `json:"label,omitempty"`
	Disabled bool       `json:"disabled,omitempty"`
	Children []*Element `json:"children,omitempty"`
}

// SetDisabled implements Control.
func (e *Element) SetDisabled(disabled bool) {
	e.Disabled = disabled
}

// Controls implements Scope by walking the tree depth first.
func (e *Element) Controls() []Control {
	var out []Control
	e.walk(func(el *Element) {
		if IsInteractiveTag(el.Tag) {
			out = append(out, el)
		}
	})
	return out
}

func (e *Element) walk(fn func(*Element)) {
	if e == nil {
		return
	}
	fn(e)
	for _, child := range e.Children {
		child.walk(fn)
	}
}

// NewForm builds a form element holding the given children.
func NewForm(name string, children ...*Element) *Element {
	return &Element{Tag: "form", Name: name, Children: children}
}

// Input builds an input element.
func Input(name, label string) *Element {
	return &Element{Tag: "input", Name: name, Label: label}
}

// Select builds a select element.
func Select(name, label string) *Element {
	return &Element{Tag: "select", Name: name, Label: label}
}

// TextArea builds a textarea element.
func TextArea(name, label string) *Element {
	return &Element{Tag: "textarea", Name: name, Label: label}
}

// Button builds a button element.
func Button(name, label string) *Element {
	return &Element{Tag: "button", Name: name, Label: label}
}

// Group builds a non-interactive container such as a fieldset.
func Group(tag string, children ...*Element) *Element {
	return &Element{Tag: tag, Children: children}
}
