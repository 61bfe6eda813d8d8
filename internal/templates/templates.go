// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package templates renders the HTML views. Views are html/template files
// embedded in the binary and exposed as templ components.
package templates

import (
	"embed"
	"html/template"

	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"github.com/a-h/templ"
)

//go:embed views/*.html
var viewFS embed.FS

var funcs = template.FuncMap{
	"statusClass": func(s models.Status) string {
		switch s {
		case models.StatusActive:
			return "badge-active"
		case models.StatusBlocked:
			return "badge-blocked"
		default:
			return "badge-unverified"
		}
	},
}

var (
	layout = template.Must(template.New("layout.html").Funcs(funcs).ParseFS(viewFS, "views/layout.html"))

	loginView    = view("login.html")
	registerView = view("register.html")
	adminView    = view("admin.html")
	errorView    = view("error.html")
)

// view combines the layout with the "content" block of one page.
func view(name string) *template.Template {
	t := template.Must(layout.Clone())
	return template.Must(t.ParseFS(viewFS, "views/"+name)).Lookup("layout.html")
}

// Login renders the sign-in form.
func Login(p LoginPage) templ.Component {
	return templ.FromGoHTML(loginView, p)
}

// Register renders the registration form.
func Register(p RegisterPage) templ.Component {
	return templ.FromGoHTML(registerView, p)
}

// Admin renders the user management table.
func Admin(p AdminPage) templ.Component {
	return templ.FromGoHTML(adminView, p)
}

// Error renders an error page.
func Error(p ErrorPage) templ.Component {
	return templ.FromGoHTML(errorView, p)
}
