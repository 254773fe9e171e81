package tosser

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/store"
)

const originalRuler = "========== Original message =========="

// newSerial returns the 8-hex-digit serial part of a MSGID.
func newSerial() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// WriteReply queues a netmail from this station back to the sender of
// original. A reply that cannot be routed is logged and dropped.
func (t *Tosser) WriteReply(ctx context.Context, original *ftn.Message, subject, text string) error {
	_, err := t.writeReply(ctx, original, subject, text)
	return err
}

// writeReply returns the link the reply was queued for, or nil when no
// route exists.
func (t *Tosser) writeReply(ctx context.Context, original *ftn.Message, subject, text string) (*store.Link, error) {
	reply := &ftn.Message{
		FromAddr: t.cfg.Address,
		ToAddr:   original.FromAddr,
		FromName: t.cfg.StationName,
		ToName:   original.FromName,
		Subject:  subject,
		Date:     t.now(),
		MsgID:    t.cfg.Address.String() + " " + newSerial(),
		Attr:     ftn.MsgAttrPrivate,
	}
	reply.Text = replyText(original, reply.MsgID, t.version, text)

	link, err := t.router.Resolve(ctx, reply)
	if err != nil {
		return nil, err
	}
	if link == nil {
		log.Printf("WARN: No route for reply to %s, dropped", reply.ToAddr)
		return nil, nil
	}

	row := netmailRow(reply, link.ID)
	if err := t.store.CreateNetmail(ctx, &row); err != nil {
		return nil, fmt.Errorf("store reply: %w", err)
	}
	log.Printf("INFO: Reply \"%s\" to %s queued via %s", subject, reply.ToAddr, link.Address)
	return link, nil
}

func replyText(original *ftn.Message, msgid, tag, text string) string {
	var sb strings.Builder
	if original.MsgID != "" {
		fmt.Fprintf(&sb, "\x01REPLY: %s\n", original.MsgID)
	}
	fmt.Fprintf(&sb, "\x01MSGID: %s\n", msgid)
	fmt.Fprintf(&sb, "\x01PID: %s\n", tag)
	fmt.Fprintf(&sb, "\x01TID: %s\n", tag)
	fmt.Fprintf(&sb, "Hello, %s!\n\n", original.FromName)
	sb.WriteString(text)
	sb.WriteString("\n\n" + originalRuler + "\n")

	quoted := strings.ReplaceAll(original.Text, "\x01", "@")
	sb.WriteString(quoted)
	if quoted != "" && !strings.HasSuffix(quoted, "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString(originalRuler + "\n\n")
	fmt.Fprintf(&sb, "--- %s\n", tag)
	return sb.String()
}
