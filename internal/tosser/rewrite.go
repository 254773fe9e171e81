package tosser

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"regexp"
	"slices"
	"strings"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/store"
)

// Rewriter applies the stored rewrite rules to messages.
type Rewriter struct {
	store store.Store
	masks *maskCache
}

// NewRewriter returns a rewriter reading rules from s.
func NewRewriter(s store.Store) *Rewriter {
	return &Rewriter{store: s, masks: &maskCache{}}
}

func rewriteType(msg *ftn.Message) store.RewriteType {
	if msg.IsNetmail() {
		return store.RewriteNetmail
	}
	return store.RewriteEchomail
}

// Apply loads the rules for the message's type and applies them in order.
func (rw *Rewriter) Apply(ctx context.Context, msg *ftn.Message) error {
	rules, err := rw.store.Rewrites(ctx,
		store.Where(store.Eq("type", string(rewriteType(msg)))).Order("priority", false))
	if err != nil {
		return fmt.Errorf("load rewrites: %w", err)
	}
	rw.ApplyRules(rules, msg)
	return nil
}

// ApplyRules rewrites msg with every matching rule of its type, in ascending
// priority, stopping after the first matching rule marked Last. It reports
// how many rules fired.
func (rw *Rewriter) ApplyRules(rules []store.Rewrite, msg *ftn.Message) int {
	typ := rewriteType(msg)
	ordered := make([]store.Rewrite, 0, len(rules))
	for _, r := range rules {
		if r.Type == typ {
			ordered = append(ordered, r)
		}
	}
	slices.SortStableFunc(ordered, func(a, b store.Rewrite) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	fired := 0
	for _, r := range ordered {
		if !rw.masks.match(rewriteMasks(r), msg) {
			continue
		}
		log.Printf("INFO: Rewrite #%d matched message %s", r.ID, msg.MsgID)
		applyRewrite(r, msg)
		fired++
		if r.Last {
			break
		}
	}
	return fired
}

func applyRewrite(r store.Rewrite, msg *ftn.Message) {
	if !isWildcard(r.NewFromAddr) {
		if addr, err := ftn.ParseAddress(r.NewFromAddr); err != nil {
			log.Printf("WARN: Rewrite #%d: bad from address %q", r.ID, r.NewFromAddr)
		} else {
			patchFromAddress(msg, addr)
		}
	}
	if !isWildcard(r.NewToAddr) {
		addr, err := ftn.ParseAddress(r.NewToAddr)
		switch {
		case err != nil:
			log.Printf("WARN: Rewrite #%d: bad to address %q", r.ID, r.NewToAddr)
		case !msg.IsNetmail():
			log.Printf("TRACE: Rewrite #%d: echomail has no destination address", r.ID)
		default:
			msg.ToAddr = addr
		}
	}
	if !isWildcard(r.NewFromName) {
		msg.FromName = r.NewFromName
	}
	if !isWildcard(r.NewToName) {
		msg.ToName = r.NewToName
	}
	if !isWildcard(r.NewSubject) {
		msg.Subject = r.NewSubject
	}
}

// patchFromAddress sets the sender and fixes the first MSGID kludge and the
// first Origin line that carry the old address.
func patchFromAddress(msg *ftn.Message, addr ftn.Address) {
	old := regexp.QuoteMeta(msg.FromAddr.String())

	msgidRe := regexp.MustCompile(`(?m)^\x01MSGID: ` + old + ` (\S+)$`)
	if loc := msgidRe.FindStringSubmatchIndex(msg.Text); loc != nil {
		serial := msg.Text[loc[2]:loc[3]]
		msg.Text = msg.Text[:loc[0]] + "\x01MSGID: " + addr.String() + " " + serial + msg.Text[loc[1]:]
		if strings.HasPrefix(msg.MsgID, msg.FromAddr.String()+" ") {
			msg.MsgID = addr.String() + " " + serial
		}
	}

	originRe := regexp.MustCompile(`(?m)^ \* Origin: (.*) \(` + old + `\)$`)
	if loc := originRe.FindStringSubmatchIndex(msg.Text); loc != nil {
		station := msg.Text[loc[2]:loc[3]]
		msg.Text = msg.Text[:loc[0]] + " * Origin: " + station + " (" + addr.String() + ")" + msg.Text[loc[1]:]
	}

	msg.FromAddr = addr
}
