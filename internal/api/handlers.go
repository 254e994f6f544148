package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/docket/internal/apperr"
	"github.com/starford/docket/internal/docservice"
	"github.com/starford/docket/internal/keyword"
	"github.com/starford/docket/internal/models"
	"github.com/starford/docket/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(models.DateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, apperr.Validation("%s: want YYYY-MM-DD, got %q", field, v)
	}
	return t, nil
}

func parseIDs(v string) ([]int64, error) {
	var out []int64
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, apperr.Validation("invalid id %q", p)
		}
		out = append(out, id)
	}
	return out, nil
}

// listParams turns query parameters into document filters.
func listParams(r *http.Request) (docservice.ListParams, error) {
	q := r.URL.Query()
	var (
		p   docservice.ListParams
		err error
	)
	p.Limit, _ = strconv.Atoi(q.Get("limit"))
	p.Offset, _ = strconv.Atoi(q.Get("offset"))
	p.TitleWords = keyword.Split(q.Get("title"))
	p.Words = keyword.Split(q.Get("content"))
	if p.Tags, err = parseIDs(q.Get("tags")); err != nil {
		return p, err
	}
	dates := []struct {
		name string
		dst  *time.Time
	}{
		{"from", &p.CreatedFrom},
		{"to", &p.CreatedTo},
		{"modified_from", &p.ModifiedFrom},
		{"modified_to", &p.ModifiedTo},
	}
	for _, d := range dates {
		if *d.dst, err = parseDate(d.name, q.Get(d.name)); err != nil {
			return p, err
		}
	}
	p.Lower, _ = strconv.ParseInt(q.Get("lower"), 10, 64)
	p.Upper, _ = strconv.ParseInt(q.Get("upper"), 10, 64)
	p.OrderBy = store.Order(q.Get("order"))
	p.Desc = q.Get("desc") == "true" || q.Get("desc") == "1"
	return p, nil
}

// ListDocs handles GET /docs.
//
//	@Summary		List documents matching all given filters
//	@Tags			docs
//	@Produce		json
//	@Param			title			query		string	false	"Words that must all occur in the title"
//	@Param			content			query		string	false	"Words that must all occur in the text"
//	@Param			tags			query		string	false	"Comma-separated tag ids (subtrees included)"
//	@Param			from			query		string	false	"Created on or after (YYYY-MM-DD)"
//	@Param			to				query		string	false	"Created on or before (YYYY-MM-DD)"
//	@Param			modified_from	query		string	false	"Modified on or after"
//	@Param			modified_to		query		string	false	"Modified on or before"
//	@Param			lower			query		int		false	"Lowest id"
//	@Param			upper			query		int		false	"Highest id"
//	@Param			order			query		string	false	"Sort field"	Enums(id, created, modified)
//	@Param			desc			query		bool	false	"Descending order"
//	@Param			limit			query		int		false	"Page size"
//	@Param			offset			query		int		false	"Page offset"
//	@Success		200				{object}	DocListResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs [get]
func (h *Handler) ListDocs(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		writeError(w, "list docs", err)
		return
	}
	docs, total, err := h.svc.List(r.Context(), p)
	if err != nil {
		writeError(w, "list docs", err)
		return
	}
	writeJSON(w, http.StatusOK, DocListResponse{Docs: docs, Total: total})
}

// GetDoc handles GET /docs/{id}.
//
//	@Summary		Get a single document
//	@Tags			docs
//	@Produce		json
//	@Param			id	path		int	true	"Document id"
//	@Success		200	{object}	DocDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs/{id} [get]
func (h *Handler) GetDoc(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, "get doc", err)
		return
	}
	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get doc", err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Digest+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// CreateDoc handles POST /docs.
//
//	@Summary		Create a new document
//	@Tags			docs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocRequest	true	"Document to create"
//	@Success		201		{object}	DocDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs [post]
func (h *Handler) CreateDoc(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	created, err := parseDate("created", req.Created)
	if err != nil {
		writeError(w, "create doc", err)
		return
	}
	doc, err := h.svc.Create(r.Context(), docservice.DocInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Created: created,
	})
	if err != nil {
		writeError(w, "create doc", err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Digest+`"`)
	writeJSON(w, http.StatusCreated, doc)
}

// UpdateDoc handles PUT /docs/{id}.
//
//	@Summary		Update a document with optimistic concurrency
//	@Tags			docs
//	@Accept			json
//	@Produce		json
//	@Param			id			path		int					true	"Document id"
//	@Param			If-Match	header		string				false	"Content digest for optimistic concurrency"
//	@Param			body		body		UpdateDocRequest	true	"Fields to change"
//	@Success		200			{object}	DocDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs/{id} [put]
func (h *Handler) UpdateDoc(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id, err := idParam(r)
	if err != nil {
		writeError(w, "update doc", err)
		return
	}
	var req UpdateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	patch := docservice.DocPatch{Title: req.Title, Content: req.Content, Tags: req.Tags}
	if req.Created != nil {
		t, err := parseDate("created", *req.Created)
		if err != nil {
			writeError(w, "update doc", err)
			return
		}
		patch.Created = &t
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	doc, err := h.svc.Update(r.Context(), id, patch, ifMatch)
	if err != nil {
		writeError(w, "update doc", err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Digest+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDoc handles DELETE /docs/{id}.
//
//	@Summary		Delete a document
//	@Tags			docs
//	@Param			id	path	int	true	"Document id"
//	@Success		204	"Document deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs/{id} [delete]
func (h *Handler) DeleteDoc(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, "delete doc", err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, "delete doc", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewDoc handles GET /docs/{id}/preview.
//
//	@Summary		First characters of a document's text
//	@Tags			docs
//	@Produce		json
//	@Param			id	path		int	true	"Document id"
//	@Success		200	{object}	PreviewResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/docs/{id}/preview [get]
func (h *Handler) PreviewDoc(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, "preview doc", err)
		return
	}
	text, err := h.svc.Preview(r.Context(), id)
	if err != nil {
		writeError(w, "preview doc", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{ID: id, Text: text})
}

// ListTags handles GET /tags.
//
//	@Summary		List all tags in pre-order
//	@Tags			tags
//	@Produce		json
//	@Success		200	{array}	TagItem
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tags": h.svc.Tags(r.Context())})
}

// CreateTag handles POST /tags.
//
//	@Summary		Create a tag
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTagRequest	true	"Tag to create"
//	@Success		201		{object}	TagItem
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags [post]
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	tag, err := h.svc.CreateTag(r.Context(), req.Name, req.ParentID)
	if err != nil {
		writeError(w, "create tag", err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

// UpdateTag handles PATCH /tags/{id}.
//
//	@Summary		Rename and/or move a tag
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Tag id"
//	@Param			body	body		UpdateTagRequest	true	"Changes"
//	@Success		200		{object}	TagItem
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{id} [patch]
func (h *Handler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id, err := idParam(r)
	if err != nil {
		writeError(w, "update tag", err)
		return
	}
	var req UpdateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == nil && req.ParentID == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("name or parent_id is required"))
		return
	}
	var tag TagItem
	if req.Name != nil {
		if tag, err = h.svc.RenameTag(r.Context(), id, *req.Name); err != nil {
			writeError(w, "rename tag", err)
			return
		}
	}
	if req.ParentID != nil {
		if tag, err = h.svc.MoveTag(r.Context(), id, *req.ParentID); err != nil {
			writeError(w, "move tag", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, tag)
}

// DeleteTag handles DELETE /tags/{id}.
//
//	@Summary		Delete an unused tag and its subtree
//	@Tags			tags
//	@Param			id	path		int	true	"Tag id"
//	@Success		200	{object}	map[string][]int64
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{id} [delete]
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, "delete tag", err)
		return
	}
	ids, err := h.svc.DeleteTag(r.Context(), id)
	if err != nil {
		writeError(w, "delete tag", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"deleted": ids})
}

// TagUsage handles GET /tags/{id}/usage.
//
//	@Summary		Count documents using a tag subtree
//	@Tags			tags
//	@Produce		json
//	@Param			id	path		int	true	"Tag id"
//	@Success		200	{object}	TagUsageResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/{id}/usage [get]
func (h *Handler) TagUsage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, "tag usage", err)
		return
	}
	n, err := h.svc.TagUsage(r.Context(), id)
	if err != nil {
		writeError(w, "tag usage", err)
		return
	}
	writeJSON(w, http.StatusOK, TagUsageResponse{ID: id, Count: n})
}

// Copy handles POST /copy. The destination is a file name next to the
// open store file.
//
//	@Summary		Copy documents into another store file
//	@Tags			docs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CopyRequest	true	"Ids and destination"
//	@Success		200		{object}	map[string]int
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/copy [post]
func (h *Handler) Copy(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CopyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	name := filepath.Clean(req.Dest)
	if len(req.IDs) == 0 || req.Dest == "" || name != filepath.Base(name) || name == ".." {
		writeJSON(w, http.StatusBadRequest, errorBody("ids and a plain destination file name are required"))
		return
	}
	dest := filepath.Join(filepath.Dir(h.svc.Store().Path()), name)
	if dest == h.svc.Store().Path() {
		writeJSON(w, http.StatusBadRequest, errorBody("destination is the open store"))
		return
	}
	n, err := h.svc.Copy(r.Context(), req.IDs, dest)
	if err != nil {
		writeError(w, "copy", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"copied": n})
}
