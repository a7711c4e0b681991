// Package notification renders and delivers outbound patient email.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Template IDs used by the booking flow.
const (
	TemplateBookingConfirmation = "booking-confirmation"
	TemplateBookingCancelled    = "booking-cancelled"
)

// EmailSender delivers one plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template is a subject and body with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine holds templates by ID.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateEngine creates a TemplateEngine with the booking templates
// registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateBookingConfirmation,
		Subject: "Appointment confirmed: {{code}}",
		Body: "Dear {{patient_name}},\n\n" +
			"Your appointment with {{doctor_name}} is booked for {{date}} at {{hour}}.\n" +
			"Booking code: {{code}}\n\n" +
			"Please arrive 10 minutes early and bring this code to reception.",
	})
	e.RegisterTemplate(Template{
		ID:      TemplateBookingCancelled,
		Subject: "Appointment cancelled: {{code}}",
		Body: "Dear {{patient_name}},\n\n" +
			"Your appointment with {{doctor_name}} on {{date}} at {{hour}} has been cancelled.",
	})
	return e
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render substitutes data into the template. Placeholders without data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}
