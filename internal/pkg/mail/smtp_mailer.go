package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/LukasWeber/CardForge/internal/pkg/env"
	"github.com/google/uuid"
)

// SendMail sends one HTML email via SMTP. It returns the generated
// Message-ID so the caller can reference the transmission in the
// delivery-proof ledger.
func SendMail(to string, subject string, body string) (string, error) {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	messageID := BuildMessageID(sender)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMessage-ID: %s\r\n", sender, to, subject, messageID) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
		return "", err
	}
	log.Printf("Email sent to %s via %s", to, addr)
	return messageID, nil
}

// BuildMessageID generates an RFC 5322 style Message-ID using the sender's
// domain part.
func BuildMessageID(sender string) string {
	domain := "localhost"
	if at := strings.LastIndex(sender, "@"); at >= 0 && at < len(sender)-1 {
		domain = sender[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}
