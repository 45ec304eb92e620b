package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/rcliao/devplan/internal/model"
	"github.com/rcliao/devplan/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	index *template.Template
	view  *template.Template
}

func loadPages() *pages {
	parse := func(name string) *template.Template {
		return template.Must(template.ParseFS(templateFS, "templates/"+name, "templates/layout.html"))
	}
	return &pages{index: parse("index.html"), view: parse("view.html")}
}

type planRow struct {
	Name     string
	Size     string
	Modified string
	State    string
	Error    string
}

type indexPage struct {
	Title string
	Plans []planRow
}

type viewPage struct {
	Title        string
	Name         string
	Source       string
	State        string
	Error        string
	Tasks        int
	Milestones   int
	Dependencies int
	Formats      []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	plans, err := s.library.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page := indexPage{Title: "Plans"}
	for _, p := range plans {
		row := planRow{
			Name:     p.Name,
			Size:     humanize.Bytes(uint64(p.Size)),
			Modified: humanize.Time(p.ModTime),
		}
		if src, err := s.library.Read(p.Name); err != nil {
			row.Error = err.Error()
		} else if st, err := s.service.Status(r.Context(), src, nil); err != nil {
			row.Error = err.Error()
		} else {
			row.State = st.State
		}
		page.Plans = append(page.Plans, row)
	}
	s.renderPage(w, r, s.pages.index, page)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	src, err := s.library.Read(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page := viewPage{Title: name, Name: name, Source: src, Formats: formatNames()}
	doc, err := s.service.Inspect(src)
	if err != nil {
		page.Error = err.Error()
		s.renderPage(w, r, s.pages.view, page)
		return
	}
	page.Tasks = doc.Count(model.KindTask)
	page.Milestones = doc.Count(model.KindMilestone)
	page.Dependencies = doc.Count(model.KindDependency)
	page.State = pipeline.StateNotRendered
	if st, err := s.service.Status(r.Context(), src, nil); err == nil {
		page.State = st.State
	}
	s.renderPage(w, r, s.pages.view, page)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		s.requestLogger(r).Error("template failed", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func formatNames() []string {
	names := make([]string, 0, len(model.ValidFormats))
	for f := range model.ValidFormats {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}
