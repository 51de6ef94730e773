package devsave

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

const (
	maxBodyBytes = 32 << 20

	// same shape as a javascript Date.toISOString
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

// invalidFormatMessage is what clients get back for a rejected body
const invalidFormatMessage = "Invalid data format"

var ErrInvalidFormat = errors.New("invalid data format")

// Handler saves the portfolio content document while developing. It
// refuses to do anything unless dev is set.
type Handler struct {
	path string
	dev  bool
	now  func() time.Time
}

func New(path string, dev bool) *Handler {
	return &Handler{path: path, dev: dev, now: time.Now}
}

// WithClock replaces the source of lastUpdated.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	if !h.dev {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Only available in development mode"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": invalidFormatMessage})
		return
	}

	lastUpdated := h.now().UTC().Format(isoMillis)
	doc, err := Document(body, lastUpdated)
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("rejected save request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": invalidFormatMessage})
		return
	}

	if err := writeFileAtomic(h.path, doc); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("path", h.path).Msg("could not save data")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to save data",
			"details": err.Error(),
		})
		return
	}

	log.Ctx(r.Context()).Info().Str("path", h.path).Msg("data saved")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "Data saved successfully",
		"lastUpdated": lastUpdated,
	})
}

// Document validates a save request body and builds the pretty printed
// document that gets written to disk.
func Document(body []byte, lastUpdated string) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.Wrap(ErrInvalidFormat, "body is not json")
	}

	projects := gjson.GetBytes(body, "projects")
	if !projects.IsArray() {
		return nil, errors.Wrap(ErrInvalidFormat, "projects must be an array")
	}

	welcome := gjson.GetBytes(body, "welcomePageData")
	if !welcome.IsObject() {
		return nil, errors.Wrap(ErrInvalidFormat, "welcomePageData must be an object")
	}

	doc, err := sjson.SetRawBytes([]byte(`{}`), "projects", []byte(projects.Raw))
	if err != nil {
		return nil, errors.Wrap(err, "could not set projects")
	}

	if doc, err = sjson.SetRawBytes(doc, "welcomePageData", []byte(welcome.Raw)); err != nil {
		return nil, errors.Wrap(err, "could not set welcomePageData")
	}

	if doc, err = sjson.SetBytes(doc, "lastUpdated", lastUpdated); err != nil {
		return nil, errors.Wrap(err, "could not set lastUpdated")
	}

	return pretty.PrettyOptions(doc, &pretty.Options{Width: 80, Indent: "  "}), nil
}

// writeFileAtomic replaces path with data, readers see the old or the new
// document but never a half written one
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "could not create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "could not create temp file in %s", dir)
	}

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrapf(err, "could not write %s", tmp.Name())
	}

	if err := tmp.Sync(); err != nil {
		return errors.Wrapf(err, "could not sync %s", tmp.Name())
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "could not close %s", tmp.Name())
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "could not move data into %s", path)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
