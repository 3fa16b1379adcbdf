package detectors

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Filterable detectors can be narrowed to a subset of their rule IDs.
type Filterable interface {
	Detector
	RuleIDs() []string
	Filter(keep func(id string) bool) Detector
}

// Default returns the built-in detectors in application order. Order matters:
// when two detectors report the same value at the same span, the earlier one
// is credited.
func Default(cfg Config) []Detector {
	ds := []Detector{
		NewPrefix(),
		NewPattern(cfg),
		NewKeyName(cfg),
		NewEntropy(cfg),
	}
	if cfg.Gitleaks {
		g, err := NewGitleaks(cfg.GitleaksConfig)
		if err != nil {
			log.WithError(err).Warn("(detectors) gitleaks detector disabled")
		} else {
			ds = append(ds, g)
		}
	}
	return ds
}

// IDs lists every detector and rule ID that --enable/--disable accept.
func IDs() []string {
	set := map[string]bool{}
	for _, d := range Default(DefaultConfig()) {
		set[d.ID()] = true
		if f, ok := d.(Filterable); ok {
			for _, id := range f.RuleIDs() {
				set[id] = true
			}
		}
	}
	set["gitleaks"] = true
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Select applies comma-separated enable/disable lists. Entries may name a
// detector ("entropy_context") or a pattern rule ("aws_access_key"). An empty
// enable list keeps everything not disabled.
func Select(ds []Detector, enable, disable string) []Detector {
	en := splitSet(enable)
	dis := splitSet(disable)
	if len(en) == 0 && len(dis) == 0 {
		return ds
	}
	var out []Detector
	for _, d := range ds {
		id := d.ID()
		if dis[id] {
			continue
		}
		f, filterable := d.(Filterable)
		if !filterable {
			if len(en) == 0 || en[id] {
				out = append(out, d)
			}
			continue
		}
		whole := len(en) == 0 || en[id]
		nd := f.Filter(func(rule string) bool {
			if dis[rule] {
				return false
			}
			return whole || en[rule]
		})
		if nd != nil {
			out = append(out, nd)
		}
	}
	return out
}

func splitSet(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			m[p] = true
		}
	}
	return m
}
