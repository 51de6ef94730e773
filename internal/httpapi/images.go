package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/denismitr/portfoliocad"
	"github.com/denismitr/portfoliocad/options"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const maxImageBytes = 32 << 20

var errBadRequest = errors.New("bad request")

type images struct {
	store ImageStore
}

type listResponse struct {
	IDs []string `json:"ids"`
}

func (h *images) put(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes))
	if err != nil {
		writeError(w, r, errors.Wrap(errBadRequest, err.Error()))
		return
	}

	dataURL, opts, err := parsePutBody(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.store.Put(r.Context(), id, dataURL, opts); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parsePutBody(body []byte) (string, *options.PutOptions, error) {
	if !gjson.ValidBytes(body) {
		return "", nil, errors.Wrap(errBadRequest, "body is not json")
	}

	data := gjson.GetBytes(body, "data")
	if data.Type != gjson.String {
		return "", nil, errors.Wrap(errBadRequest, "data must be a string")
	}

	opts := options.Put()
	if name := gjson.GetBytes(body, "name"); name.Exists() {
		if name.Type != gjson.String {
			return "", nil, errors.Wrap(errBadRequest, "name must be a string")
		}
		opts.SetName(name.String())
	}

	return data.String(), opts, nil
}

func (h *images) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "image not found"})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *images) data(w http.ResponseWriter, r *http.Request) {
	dataURL, found, err := h.store.GetDataURL(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "image not found"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, dataURL)
}

func (h *images) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *images) list(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids, err := h.store.Keys(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{IDs: ids})
}

func listOptions(r *http.Request) (*options.ListOptions, error) {
	q := r.URL.Query()
	opts := options.List().Prefix(q.Get("prefix"))

	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		opts.SetOrder(options.Descend)
	default:
		return nil, errors.Wrapf(errBadRequest, "unknown order %q", q.Get("order"))
	}

	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return nil, errors.Wrapf(errBadRequest, "invalid limit %q", l)
		}
		opts.SetLimit(n)
	}

	return opts, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, portfoliocad.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, portfoliocad.ErrEnvironmentUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Msg("image request failed")
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("could not encode response")
	}
}
