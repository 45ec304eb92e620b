package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/devplan/internal/model"
	"github.com/rcliao/devplan/internal/sheet"
	"github.com/rcliao/devplan/internal/store"
)

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type renderRequest struct {
	Source  string            `json:"source"`
	Options map[string]string `json:"options,omitempty"`
}

type renderResponse struct {
	*model.RenderResult
	URL string `json:"url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", UptimeSeconds: s.uptimeSeconds()})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var req renderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	res, err := s.service.RenderPlan(r.Context(), req.Source, req.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{RenderResult: res, URL: "/artifacts/" + res.Fingerprint})
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := store.ListParams{
		Format:  model.Format(q.Get("format")),
		Diagram: model.Diagram(q.Get("diagram")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		p.Limit = n
	}
	recs, err := s.store.List(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []model.ArtifactRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), r.PathValue("fingerprint"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := rec.Fingerprint
	if len(name) > 12 {
		name = name[:12]
	}
	writeMedia(w, r, rec.MimeType, rec.Media, name+"."+string(rec.Format))
}

func (s *Server) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	fp := r.PathValue("fingerprint")
	if err := s.store.Rm(r.Context(), fp); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "fingerprint": fp})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.library.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if plans == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// handlePutPlan stores a plan after checking that it parses.
func (s *Server) handlePutPlan(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if _, err := s.service.Inspect(string(body)); err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.library.Write(r.PathValue("name"), string(body))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.requestLogger(r).Info("plan saved", "name", plan.Name, "size", plan.Size)
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.library.Remove(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
}

func (s *Server) handlePlanDocument(w http.ResponseWriter, r *http.Request) {
	src, err := s.library.Read(r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.service.Inspect(src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	switch r.URL.Query().Get("as") {
	case "", "json":
		writeJSON(w, http.StatusOK, doc)
	case "yaml":
		out, err := yaml.Marshal(doc)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("encode yaml: %w", err))
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
	case "xlsx":
		var buf bytes.Buffer
		if err := sheet.Write(&buf, doc); err != nil {
			s.writeError(w, r, fmt.Errorf("encode xlsx: %w", err))
			return
		}
		w.Header().Set("Content-Type", sheet.MediaType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", r.PathValue("name")+".xlsx"))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "as must be json, yaml or xlsx"})
	}
}

func (s *Server) handlePlanStatus(w http.ResponseWriter, r *http.Request) {
	src, err := s.library.Read(r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.service.Status(r.Context(), src, queryOptions(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handlePlanRender renders a library plan. Query parameters other than
// download are render options.
func (s *Server) handlePlanRender(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	src, err := s.library.Read(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.service.RenderPlan(r.Context(), src, queryOptions(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Fingerprint", res.Fingerprint)
	filename := ""
	if r.URL.Query().Get("download") != "" {
		filename = name + "." + extension(res.MimeType)
	}
	writeMedia(w, r, res.MimeType, res.MediaBytes, filename)
}

func queryOptions(r *http.Request) map[string]string {
	opts := map[string]string{}
	for k, vs := range r.URL.Query() {
		if k == "download" || len(vs) == 0 {
			continue
		}
		opts[k] = vs[0]
	}
	return opts
}

func extension(mime string) string {
	for f, m := range model.ValidFormats {
		if m == mime {
			return string(f)
		}
	}
	return "bin"
}

// writeMedia writes artifact bytes; a non-empty filename marks the response
// as a download.
func writeMedia(w http.ResponseWriter, r *http.Request, mime string, data []byte, filename string) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty body"})
		return nil, false
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload exceeds limit"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unable to read body"})
		return nil, false
	}
	return body, true
}
