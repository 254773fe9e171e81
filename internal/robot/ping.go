package robot

import (
	"context"
	"fmt"
	"strings"

	"github.com/stlalpha/v3toss/internal/ftn"
)

// Replier sends a netmail reply to the sender of a message.
type Replier interface {
	WriteReply(ctx context.Context, original *ftn.Message, subject, text string) error
}

// Ping answers every message with a copy of its header and routing trail.
type Ping struct {
	Replier Replier
}

func (p *Ping) Execute(ctx context.Context, msg *ftn.Message) error {
	var sb strings.Builder
	sb.WriteString("PONG! Your message reached this station.\n\n")
	fmt.Fprintf(&sb, "From:    %s, %s\n", msg.FromName, msg.FromAddr)
	fmt.Fprintf(&sb, "To:      %s, %s\n", msg.ToName, msg.ToAddr)
	fmt.Fprintf(&sb, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&sb, "Date:    %s\n", ftn.FormatFTNDateTime(msg.Date))

	var via []string
	for _, line := range strings.Split(msg.Text, "\n") {
		if strings.HasPrefix(line, "\x01Via") {
			via = append(via, strings.TrimPrefix(line, "\x01"))
		}
	}
	if len(via) > 0 {
		sb.WriteString("\nRoute:\n")
		for _, v := range via {
			sb.WriteString("  " + v + "\n")
		}
	}

	return p.Replier.WriteReply(ctx, msg, "Pong: "+msg.Subject, sb.String())
}
