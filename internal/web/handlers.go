package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bboimport/internal/core"
	"github.com/JonMunkholm/bboimport/internal/logging"
)

// handleHealth reports database reachability and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := s.service.LimiterStatus()
	body := map[string]any{
		"status":           "ok",
		"activeImports":    status.Active,
		"availableImports": status.Available,
	}
	if err := s.service.Ping(ctx); err != nil {
		body["status"] = "unavailable"
		body["error"] = core.MapError(err).Message
		writeJSONStatus(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, body)
}

// kindInfo describes one importable record kind.
type kindInfo struct {
	Kind     core.RecordKind `json:"kind"`
	Label    string          `json:"label"`
	Columns  []string        `json:"columns"`
	Required []string        `json:"required"`
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	defs := s.service.Kinds()
	out := make([]kindInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, kindInfo{Kind: d.Kind, Label: d.Label, Columns: d.Columns, Required: d.Required})
	}
	writeJSON(w, out)
}

// importResponse is the body of POST /api/import/{kind}. A failed or
// cancelled run still reports its counters next to the error.
type importResponse struct {
	*core.ImportResult
	Message *core.UserMessage `json:"message,omitempty"`
}

// handleImport streams the multipart "file" part straight into the
// importer. Nothing is buffered to disk, so the database paces the upload.
// An optional ?id= (a UUID) names the import, which lets the client open
// the progress stream before this request returns.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	part, err := filePart(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer part.Close()

	ctx := core.ContextWithSource(r.Context(), "http:"+r.RemoteAddr)
	if id := r.URL.Query().Get("id"); id != "" {
		ctx = logging.WithImportID(ctx, id)
	}

	// The multipart body is slightly larger than the file; close enough
	// for a progress bar.
	size := r.ContentLength
	if size < 0 {
		size = 0
	}

	res, err := s.service.Import(ctx, kind, part.FileName(), &sizeLimitedReader{r: part}, size)
	if err != nil {
		if res == nil {
			respondError(w, r, err, statusFor(err))
			return
		}
		msg := core.MapError(err)
		logging.FromContext(r.Context()).Warn("import did not complete",
			"import_id", res.ImportID, "code", msg.Code, "error", err)
		writeJSONStatus(w, importStatus(err), importResponse{ImportResult: res, Message: &msg})
		return
	}
	writeJSON(w, importResponse{ImportResult: res})
}

// filePart advances the multipart reader to the part named "file".
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoFile, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFile
		}
		if err != nil {
			return nil, mapBodyError(err)
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

// sizeLimitedReader turns the MaxBytesReader error into errFileTooBig so
// it maps to FILE001.
type sizeLimitedReader struct {
	r io.Reader
}

func (l *sizeLimitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = mapBodyError(err)
	}
	return n, err
}

func mapBodyError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("%w: limit is %d bytes", errFileTooBig, tooBig.Limit)
	}
	return err
}

// importStatus is the status of a started import that did not commit.
func importStatus(err error) int {
	if errors.Is(err, context.Canceled) {
		return http.StatusConflict
	}
	if errors.Is(err, errFileTooBig) {
		return http.StatusRequestEntityTooLarge
	}
	return statusFor(err)
}

func (s *Server) handleActiveImports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.ActiveImports())
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Progress(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

// handleProgress streams progress as Server-Sent Events until the import
// finishes or the client goes away. Every event carries the full snapshot,
// so a reconnecting client only needs the latest one.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	ch, err := s.service.SubscribeProgress(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	seq := 0
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			data, err := json.Marshal(p)
			if err != nil {
				return
			}
			seq++
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", seq, data)
			if err := rc.Flush(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.CancelImport(id); err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"importId": id, "status": "cancelling"})
}

const maxHistoryLimit = 500

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	limit := core.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respondError(w, r, fmt.Errorf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.service.ImportHistory(r.Context(), kind, limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	writeJSON(w, entries)
}
