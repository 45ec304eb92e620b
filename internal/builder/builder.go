// Package builder turns a parsed plan into engine source text and computes
// its fingerprint.
package builder

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rcliao/devplan/internal/model"
)

const (
	OptFormat  = "format"
	OptDiagram = "diagram"
	OptTitle   = "title"
	OptScale   = "scale"
	OptTheme   = "theme"
)

// Defaults applied when the caller omits format or diagram.
const (
	DefaultFormat  = model.FormatPNG
	DefaultDiagram = model.DiagramGantt
)

var themePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Build validates options and serialises doc. Options are checked in key
// order before any serialisation, so the first bad key is always reported.
func Build(doc *model.PlanDocument, options map[string]string) (*model.RenderRequest, error) {
	req, err := resolve(options)
	if err != nil {
		return nil, err
	}

	switch req.Diagram {
	case model.DiagramGraph:
		req.SourceText = writeGraph(doc, req.Options)
	default:
		req.SourceText = writeGantt(doc, req.Options)
	}
	req.Fingerprint = Fingerprint(req)
	return req, nil
}

// resolve checks options and returns a request with defaults filled in.
// Extra options are normalised so equivalent spellings share a fingerprint.
func resolve(options map[string]string) (*model.RenderRequest, error) {
	req := &model.RenderRequest{
		Format:  DefaultFormat,
		Diagram: DefaultDiagram,
		Options: map[string]string{},
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := options[key]
		switch key {
		case OptFormat:
			f := model.Format(strings.ToLower(value))
			if _, ok := model.ValidFormats[f]; !ok {
				return nil, &ConfigError{Key: key, Value: value, Reason: "must be one of png, svg, txt"}
			}
			req.Format = f
		case OptDiagram:
			d := model.Diagram(strings.ToLower(value))
			if !model.ValidDiagrams[d] {
				return nil, &ConfigError{Key: key, Value: value, Reason: "must be gantt or graph"}
			}
			req.Diagram = d
		case OptTitle:
			if strings.ContainsAny(value, "\r\n") {
				return nil, &ConfigError{Key: key, Value: value, Reason: "must be a single line"}
			}
			if value != "" {
				req.Options[key] = value
			}
		case OptScale:
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
				return nil, &ConfigError{Key: key, Value: value, Reason: "must be a positive number"}
			}
			req.Options[key] = strconv.FormatFloat(f, 'g', -1, 64)
		case OptTheme:
			if !themePattern.MatchString(value) {
				return nil, &ConfigError{Key: key, Value: value, Reason: "must be an identifier"}
			}
			req.Options[key] = value
		default:
			return nil, &ConfigError{Key: key}
		}
	}
	return req, nil
}

// header writes the directives shared by both diagram kinds.
func header(sb *strings.Builder, opts map[string]string) {
	if theme, ok := opts[OptTheme]; ok {
		sb.WriteString("!theme " + theme + "\n")
	}
	if title, ok := opts[OptTitle]; ok {
		sb.WriteString("title " + title + "\n")
	}
	if scale, ok := opts[OptScale]; ok {
		sb.WriteString("scale " + scale + "\n")
	}
}

// aliases assigns every task and milestone an engine-safe alias. Collisions
// after sanitising get a numeric suffix in declaration order.
type aliases struct {
	byID  map[string]string
	taken map[string]bool
}

func newAliases(doc *model.PlanDocument) *aliases {
	a := &aliases{byID: map[string]string{}, taken: map[string]bool{}}
	doc.Walk(func(n *model.PlanNode, _ int) bool {
		if n.Kind == model.KindTask || n.Kind == model.KindMilestone {
			a.byID[n.ID] = a.reserve(sanitize(n.ID))
		}
		return true
	})
	return a
}

func (a *aliases) reserve(base string) string {
	alias := base
	for i := 2; a.taken[alias]; i++ {
		alias = base + "_" + strconv.Itoa(i)
	}
	a.taken[alias] = true
	return alias
}

func (a *aliases) of(id string) string {
	return a.byID[id]
}

func sanitize(id string) string {
	var sb strings.Builder
	for _, r := range id {
		if r < 128 && (r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	s := sb.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "n" + s
	}
	return s
}

// quoted makes text safe inside a double-quoted engine string.
func quoted(s string) string {
	return strings.ReplaceAll(s, `"`, "''")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
