// Package templates renders the transactional emails sent by the widget backend.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
)

// VerificationProps are the values of the email identity verification message.
type VerificationProps struct {
	Name            string
	Email           string
	VerifyURL       string
	WidgetName      string
	AccentColor     string
	ExpirationHours int
}

type layoutData struct {
	Preheader string
	Title     string
	Body      template.HTML
}

var (
	layoutTemplate = template.Must(template.New("layout").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8">
    <title>{{.Title}}</title>
  </head>
  <body style="font-family: Helvetica, sans-serif; font-size: 16px; line-height: 1.4; background-color: #f4f5f6; margin: 0; padding: 0;">
    <span style="display: none; max-height: 0; overflow: hidden;">{{.Preheader}}</span>
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="100%" bgcolor="#f4f5f6">
      <tr>
        <td align="center" style="padding: 24px;">
          <table role="presentation" border="0" cellpadding="0" cellspacing="0" style="max-width: 600px; width: 100%; background: #ffffff; border: 1px solid #eaebed; border-radius: 12px;">
            <tr><td style="padding: 24px;">{{.Body}}</td></tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>`))

	verificationTemplate = template.Must(template.New("verification").Parse(`
<p style="margin: 0 0 16px;">Hi {{.Name}},</p>
<p style="margin: 0 0 16px;">Please confirm that <strong>{{.Email}}</strong> is your address so {{.WidgetName}} can reply to your conversations by email.</p>
<p style="margin: 0 0 16px;">
  <a href="{{.VerifyURL}}" target="_blank" style="display: inline-block; padding: 12px 24px; border-radius: 4px; font-weight: bold; text-decoration: none; color: #ffffff; background-color: {{.AccentColor}};">Verify email</a>
</p>
<p style="margin: 0; color: #6b7280; font-size: 14px;">The link expires in {{.ExpirationHours}} hours. If you did not ask for this, ignore this email.</p>`))
)

// VerificationEmail returns the subject and html body of the verification message.
func VerificationEmail(props VerificationProps) (subject, html string, err error) {
	u, err := url.Parse(props.VerifyURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return "", "", fmt.Errorf("invalid verification url %q", props.VerifyURL)
	}
	if props.Name == "" {
		props.Name = "there"
	}
	if props.WidgetName == "" {
		props.WidgetName = "our support team"
	}
	if props.AccentColor == "" {
		props.AccentColor = "#9370DB"
	}
	if props.ExpirationHours <= 0 {
		props.ExpirationHours = 24
	}

	var body bytes.Buffer
	if err := verificationTemplate.Execute(&body, props); err != nil {
		return "", "", fmt.Errorf("render verification email: %w", err)
	}

	subject = "Verify your email address"
	var out bytes.Buffer
	err = layoutTemplate.Execute(&out, layoutData{
		Preheader: "Confirm " + props.Email,
		Title:     subject,
		Body:      template.HTML(body.String()),
	})
	if err != nil {
		return "", "", fmt.Errorf("render email layout: %w", err)
	}
	return subject, out.String(), nil
}
