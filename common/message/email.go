package message

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/aquareto/aquareto-server/common/config"
	"github.com/aquareto/aquareto-server/common/graceful"
	"github.com/aquareto/aquareto-server/common/logger"
)

func shouldAuth() bool {
	return config.SMTPAccount != "" || config.SMTPToken != ""
}

// retryBackoff is the delay before each redelivery attempt after the
// initial synchronous send fails.
var retryBackoff = []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute}

// SendEmail delivers one HTML message. The first attempt runs on the
// caller's context; a transport failure schedules up to three background
// redeliveries with exponential backoff so a flaky relay never fails the
// request that triggered the mail. Only input problems (empty receiver)
// surface to the caller.
func SendEmail(ctx context.Context, subject string, receiver string, content string) error {
	if receiver == "" {
		return errors.Errorf("receiver is empty")
	}

	err := sendOnce(ctx, subject, receiver, content)
	if err == nil {
		return nil
	}
	logger.Logger.Warn("email send failed, scheduling background retries",
		zap.String("receiver", receiver), zap.String("subject", subject), zap.Error(err))

	graceful.GoCritical(context.Background(), "email-retry", func(ctx context.Context) {
		for attempt, wait := range retryBackoff {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
			err := sendOnce(ctx, subject, receiver, content)
			if err == nil {
				return
			}
			logger.Logger.Warn("email redelivery failed",
				zap.Int("attempt", attempt+1), zap.String("receiver", receiver), zap.Error(err))
		}
		logger.Logger.Error("email abandoned after exhausting retries",
			zap.String("receiver", receiver), zap.String("subject", subject))
	})
	return nil
}

// sendOnce performs a single SMTP transaction, honoring ctx for the dial
// and TLS handshake.
func sendOnce(ctx context.Context, subject string, receiver string, content string) error {
	if config.SMTPFrom == "" { // for compatibility
		config.SMTPFrom = config.SMTPAccount
	}
	encodedSubject := fmt.Sprintf("=?UTF-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(subject)))

	// Extract domain from SMTPFrom with fallback
	domain := "localhost"
	parts := strings.Split(config.SMTPFrom, "@")
	if len(parts) > 1 && parts[1] != "" {
		domain = parts[1]
	}

	// Generate a unique Message-ID
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return errors.Wrap(err, "failed to generate random bytes for Message-ID")
	}
	messageId := fmt.Sprintf("<%x@%s>", buf, domain)

	mail := fmt.Appendf(nil, "To: %s\r\n"+
		"From: %s<%s>\r\n"+
		"Subject: %s\r\n"+
		"Message-ID: %s\r\n"+ // add Message-ID header to avoid being treated as spam, RFC 5322
		"Date: %s\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n",
		receiver, config.SystemName, config.SMTPFrom, encodedSubject, messageId, time.Now().Format(time.RFC1123Z), content)

	auth := smtp.PlainAuth("", config.SMTPAccount, config.SMTPToken, config.SMTPServer)
	addr := net.JoinHostPort(config.SMTPServer, fmt.Sprintf("%d", config.SMTPPort))

	// Clean up recipient addresses
	receiverEmails := []string{}
	for email := range strings.SplitSeq(receiver, ";") {
		email = strings.TrimSpace(email)
		if email != "" {
			receiverEmails = append(receiverEmails, email)
		}
	}

	if len(receiverEmails) == 0 {
		return errors.New("no valid recipient email addresses")
	}

	// Use advanced client for port 465 (implicit TLS) or when auth is not needed
	// Also use advanced client for other ports to support STARTTLS
	var conn net.Conn
	var err error

	// Add connection timeout on top of any deadline ctx carries
	dialer := &net.Dialer{
		Timeout: 30 * time.Second,
	}

	conn, err = dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "failed to connect to SMTP server")
	}

	if config.SMTPPort == 465 {
		// Port 465: implicit TLS (SMTPS)
		tlsConn := tls.Client(conn, &tls.Config{
			InsecureSkipVerify: !config.ForceEmailTLSVerify,
			ServerName:         config.SMTPServer,
		})
		if err = tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return errors.Wrap(err, "TLS handshake with SMTP server failed")
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, config.SMTPServer)
	if err != nil {
		return errors.Wrap(err, "failed to create SMTP client")
	}
	defer client.Close()

	// For non-465 ports, try to use STARTTLS if supported
	if config.SMTPPort != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{
				InsecureSkipVerify: !config.ForceEmailTLSVerify,
				ServerName:         config.SMTPServer,
			}
			if err = client.StartTLS(tlsConfig); err != nil {
				return errors.Wrap(err, "failed to start TLS")
			}
		}
	}

	// Authenticate if credentials are provided
	if shouldAuth() {
		if err = client.Auth(auth); err != nil {
			return errors.Wrap(err, "SMTP authentication failed")
		}
	}

	if err = client.Mail(config.SMTPFrom); err != nil {
		return errors.Wrap(err, "failed to set MAIL FROM")
	}

	for _, receiver := range receiverEmails {
		if err = client.Rcpt(receiver); err != nil {
			return errors.Wrapf(err, "failed to add recipient: %s", receiver)
		}
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "failed to create message data writer")
	}

	if _, err = w.Write(mail); err != nil {
		return errors.Wrap(err, "failed to write email content")
	}

	if err = w.Close(); err != nil {
		return errors.Wrap(err, "failed to close message data writer")
	}

	return nil
}
