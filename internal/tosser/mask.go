package tosser

import (
	"log"
	"regexp"
	"sync"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/store"
)

// masks is the five-field pattern shared by route and rewrite rules.
// A field equal to "*" or empty matches anything; any other value is a
// regular expression that must match the whole field.
type masks struct {
	FromAddr, ToAddr, FromName, ToName, Subject string
}

func routeMasks(r store.Route) masks {
	return masks{r.FromAddr, r.ToAddr, r.FromName, r.ToName, r.Subject}
}

func rewriteMasks(r store.Rewrite) masks {
	return masks{r.OrigFromAddr, r.OrigToAddr, r.OrigFromName, r.OrigToName, r.OrigSubject}
}

func isWildcard(mask string) bool {
	return mask == "" || mask == store.MaskAny
}

// maskCache compiles each pattern once. Invalid patterns are cached as nil
// and never match.
type maskCache struct {
	compiled sync.Map // pattern -> *regexp.Regexp
}

func (c *maskCache) regexp(pattern string) *regexp.Regexp {
	if v, ok := c.compiled.Load(pattern); ok {
		return v.(*regexp.Regexp)
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		log.Printf("WARN: Invalid mask %q: %v", pattern, err)
		re = nil
	}
	v, _ := c.compiled.LoadOrStore(pattern, re)
	return v.(*regexp.Regexp)
}

// match reports whether every non-wildcard mask matches msg. Echomail has no
// destination address, so a ToAddr mask other than a wildcard never matches it.
func (c *maskCache) match(m masks, msg *ftn.Message) bool {
	fields := []struct {
		mask, value string
		present     bool
	}{
		{m.FromAddr, msg.FromAddr.String(), true},
		{m.ToAddr, msg.ToAddr.String(), msg.IsNetmail()},
		{m.FromName, msg.FromName, true},
		{m.ToName, msg.ToName, true},
		{m.Subject, msg.Subject, true},
	}
	for _, f := range fields {
		if isWildcard(f.mask) {
			continue
		}
		if !f.present {
			return false
		}
		re := c.regexp(f.mask)
		if re == nil || !re.MatchString(f.value) {
			return false
		}
	}
	return true
}
