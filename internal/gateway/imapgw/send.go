package imapgw

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"go.uber.org/zap"

	"github.com/nhle/mail-client/internal/gateway"
	"github.com/nhle/mail-client/internal/model"
)

// Send delivers an outgoing message via the account's SMTP endpoint and
// then appends a copy to the sent folder, best-effort.
func (g *Gateway) Send(ctx context.Context, accountID string, msg gateway.Outgoing) error {
	cfg, err := g.registry.Get(accountID)
	if err != nil {
		return err
	}

	to := splitAddressList(msg.To)
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	recipients := to
	recipients = append(recipients, splitAddressList(msg.Cc)...)
	recipients = append(recipients, splitAddressList(msg.Bcc)...)

	password, err := g.registry.Password(cfg.ID)
	if err != nil {
		return &gateway.AuthError{
			AccountID: cfg.ID,
			Message:   fmt.Sprintf("no stored password for %s: %v", cfg.Email, err),
		}
	}

	raw := composeMessage(cfg, msg, to)

	if cfg.SMTP.UseSSL {
		err = sendSMTPWithTLS(cfg.SMTP, cfg.Email, password, recipients, raw)
	} else {
		err = sendSMTPWithStartTLS(cfg.SMTP, cfg.Email, password, recipients, raw)
	}
	if err != nil {
		return err
	}

	// A failed sent-copy append must not fail the delivery.
	if appendErr := g.appendToSent(ctx, cfg, msg.SentFolderID, raw); appendErr != nil {
		g.logger.Warn("appending sent copy failed",
			zap.String("account_id", accountID),
			zap.Error(appendErr),
		)
	}

	return nil
}

// appendToSent stores a copy of a delivered message in the sent folder,
// preferring the folder flagged \Sent over the caller-provided id.
func (g *Gateway) appendToSent(ctx context.Context, cfg *model.AccountConfig, sentFolderID string, raw []byte) error {
	client, err := g.connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	mailbox := sentFolderID
	listCmd := client.List("", "*", nil)
	if mailboxes, err := listCmd.Collect(); err == nil {
		for _, mbox := range mailboxes {
			if folderRole(mbox.Mailbox, mbox.Attrs) == model.RoleSent {
				mailbox = mbox.Mailbox
				break
			}
		}
	}
	if mailbox == "" {
		return fmt.Errorf("no sent folder")
	}

	appendCmd := client.Append(mailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
	})
	if _, err := appendCmd.Write(raw); err != nil {
		return fmt.Errorf("writing sent copy: %w", err)
	}
	if err := appendCmd.Close(); err != nil {
		return fmt.Errorf("closing sent copy: %w", err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}

	return nil
}

// composeMessage builds the raw RFC 2822 payload. A message with an HTML
// body is emitted as multipart/alternative.
func composeMessage(cfg *model.AccountConfig, msg gateway.Outgoing, to []string) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s <%s>\r\n", cfg.DisplayName, cfg.Email)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	if cc := splitAddressList(msg.Cc); len(cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")

	if msg.BodyHTML == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.BodyText)
		return []byte(b.String())
	}

	var parts strings.Builder
	mw := multipart.NewWriter(&parts)

	textPart, _ := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	fmt.Fprint(textPart, msg.BodyText)

	htmlPart, _ := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	fmt.Fprint(htmlPart, msg.BodyHTML)

	mw.Close()

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	b.WriteString(parts.String())

	return []byte(b.String())
}

// sendSMTPWithTLS submits a message over an implicit TLS connection.
func sendSMTPWithTLS(ep model.ServerEndpoint, username, password string, recipients []string, raw []byte) error {
	tlsConfig := &tls.Config{ServerName: ep.Host}

	conn, err := tls.Dial("tcp", ep.Addr(), tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", ep.Addr(), err)
	}

	client, err := smtp.NewClient(conn, ep.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", username, password, ep.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return submit(client, username, recipients, raw)
}

// sendSMTPWithStartTLS submits a message using STARTTLS.
func sendSMTPWithStartTLS(ep model.ServerEndpoint, username, password string, recipients []string, raw []byte) error {
	conn, err := net.DialTimeout("tcp", ep.Addr(), 30*time.Second)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", ep.Addr(), err)
	}

	client, err := smtp.NewClient(conn, ep.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: ep.Host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("SMTP STARTTLS: %w", err)
	}

	auth := smtp.PlainAuth("", username, password, ep.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return submit(client, username, recipients, raw)
}

// submit sends a message using an already-authenticated SMTP client.
func submit(client *smtp.Client, from string, recipients []string, raw []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}
