package main

import (
	"bytes"
	"embed"
	"html/template"
	ttemplate "text/template"
	"time"

	"github.com/go-mail/mail/v2"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type notifier interface {
	send(to, templateFile string, data any) error
}

type mailer struct {
	dailer *mail.Dialer
	sender string
}

func newMailer(host string, port int, username string, password string, sender string) *mailer {
	dailer := mail.NewDialer(host, port, username, password)
	dailer.Timeout = 5 * time.Second
	return &mailer{
		dailer: dailer,
		sender: sender,
	}
}

type renderedMail struct {
	subject   string
	plainBody string
	htmlBody  string
}

// renderMail executes the subject and plain text blocks with text/template so
// they are not HTML escaped; only htmlBody goes through html/template.
func renderMail(templateFile string, data any) (renderedMail, error) {
	textTmpl, err := ttemplate.New("email").ParseFS(templateFS, "templates/"+templateFile)
	if err != nil {
		return renderedMail{}, err
	}
	htmlTmpl, err := template.New("email").ParseFS(templateFS, "templates/"+templateFile)
	if err != nil {
		return renderedMail{}, err
	}
	var subject bytes.Buffer
	err = textTmpl.ExecuteTemplate(&subject, "subject", data)
	if err != nil {
		return renderedMail{}, err
	}
	var plainBody bytes.Buffer
	err = textTmpl.ExecuteTemplate(&plainBody, "plainBody", data)
	if err != nil {
		return renderedMail{}, err
	}
	var htmlBody bytes.Buffer
	err = htmlTmpl.ExecuteTemplate(&htmlBody, "htmlBody", data)
	if err != nil {
		return renderedMail{}, err
	}
	return renderedMail{
		subject:   subject.String(),
		plainBody: plainBody.String(),
		htmlBody:  htmlBody.String(),
	}, nil
}

func (m *mailer) send(to, templateFile string, data any) error {
	rendered, err := renderMail(templateFile, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("To", to)
	msg.SetHeader("From", m.sender)
	msg.SetHeader("Subject", rendered.subject)
	msg.SetBody("text/plain", rendered.plainBody)
	msg.AddAlternative("text/html", rendered.htmlBody)

	for i := 0; i < 3; i++ {
		err = m.dailer.DialAndSend(msg)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	return err
}

// notifyRegistration tells the operator about a new account. It runs in the
// background and never affects the registration response.
func (app *application) notifyRegistration(u *user) {
	if app.mailer == nil {
		return
	}
	app.background(func() {
		data := map[string]any{
			"Username":     u.Username,
			"UserID":       u.ID.String(),
			"RegisteredAt": u.CreatedAt.UTC().Format(time.RFC1123),
		}
		err := app.mailer.send(app.config.notifyEmail, "user_registered.tmpl", data)
		if err != nil {
			app.logger.Error("registration notice failed", "error", err, "user_id", u.ID)
		}
	})
}
