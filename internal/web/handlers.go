package web

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/lector/internal/config"
	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/ops"
)

// Handlers contains HTTP route handlers for the UI and the JSON API.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	deps     ops.Deps
	renderer *Renderer
}

// HandleIndex renders the reading list page at GET /.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	items, err := ops.ListItems(r.Context(), h.db, ops.ListItemsInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	settings, err := ops.GetSettings(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "index", IndexPageData{
		PageData: PageData{
			Title:   "Reading List",
			Version: h.renderer.version,
		},
		Items:              items,
		Pending:            pendingCount(items),
		CustomInstructions: settings.CustomInstructions,
	})
}

// HandleDetail renders one item and its summary at GET /items/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	it, err := ops.GetItem(r.Context(), h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := DetailPageData{
		PageData: PageData{
			Title:   it.DisplayTitle(),
			Version: h.renderer.version,
		},
		Item: it,
	}
	if it.Summary != nil {
		data.SummaryHTML = renderMarkdown(*it.Summary)
	}

	h.renderer.renderPage(w, "detail", data)
}

// HandleListItems handles GET /api/items.
func (h *Handlers) HandleListItems(w http.ResponseWriter, r *http.Request) {
	input := ops.ListItemsInput{UnprocessedOnly: parseBoolParam(r, "unprocessed")}

	items, err := ops.ListItems(r.Context(), h.db, input)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, items)
}

// HandleGetItem handles GET /api/items/{id}.
func (h *Handlers) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	it, err := ops.GetItem(r.Context(), h.db, id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, it)
}

// HandleDeleteItem handles DELETE /api/items/{id}.
func (h *Handlers) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	result, err := ops.DeleteItem(r.Context(), h.db, id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSync handles POST /api/sync.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Sync(r.Context(), h.db, h.cfg, ops.SyncInput{})
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleProcess handles POST /api/process. An empty body processes every pending item.
func (h *Handlers) HandleProcess(w http.ResponseWriter, r *http.Request) {
	var input ops.ProcessInput
	if err := decodeBody(w, r, &input); err != nil {
		writeAPIError(w, err)
		return
	}

	result, err := ops.Process(r.Context(), h.db, h.deps, input)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleGetSettings handles GET /api/settings.
func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	result, err := ops.GetSettings(r.Context(), h.db)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleUpdateSettings handles POST /api/settings.
func (h *Handlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var input ops.UpdateSettingsInput
	if err := decodeBody(w, r, &input); err != nil {
		writeAPIError(w, err)
		return
	}

	result, err := ops.UpdateSettings(r.Context(), h.db, input)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// decodeBody decodes a JSON request body into v. An empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// itemID parses the {id} URL parameter.
func itemID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest("invalid item id: " + raw)
	}
	return id, nil
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
