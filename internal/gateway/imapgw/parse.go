package imapgw

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mail-client/internal/model"
)

// parseMIMEBody parses a raw RFC 2822 message using go-message and extracts
// the text/plain body, text/html body, and attachment metadata. Attachment
// ids are minted as "<messageID>::att::<index>" so they stay resolvable
// alongside the message.
func parseMIMEBody(messageID string, raw []byte) (textBody, htmlBody string, attachments []model.Attachment) {
	reader := bytes.NewReader(raw)

	mr, err := mail.CreateReader(reader)
	if err != nil {
		// If parsing fails, treat the whole payload as plain text.
		return string(raw), "", nil
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				textBody = string(body)
			case strings.HasPrefix(contentType, "text/html"):
				htmlBody = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			// Read to get the size without keeping the content.
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			attachments = append(attachments, model.Attachment{
				ID:          fmt.Sprintf("%s::att::%d", messageID, len(attachments)),
				FileName:    filename,
				ContentType: contentType,
				Size:        int64(len(body)),
			})
		}
	}

	return textBody, htmlBody, attachments
}
