package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/importer"
	"github.com/ignite/campaign-mailer/internal/pkg/httputil"
	"github.com/ignite/campaign-mailer/internal/repository/postgres"
)

func (h *Handlers) ListRecipients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	activeOnly := q.Get("active") == "true"

	list, total, err := h.recipients.List(r.Context(), activeOnly, limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"recipients": list, "total": total})
}

func (h *Handlers) GetRecipient(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recipients.Get(r.Context(), idParam(r))
	if err != nil {
		if errors.Is(err, postgres.ErrRecipientNotFound) {
			httputil.NotFound(w, "recipient not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rec)
}

func (h *Handlers) CreateRecipient(w http.ResponseWriter, r *http.Request) {
	var rec domain.Recipient
	if !httputil.Decode(w, r, &rec) {
		return
	}
	rec.Email = strings.ToLower(strings.TrimSpace(rec.Email))
	if rec.Email == "" {
		httputil.BadRequest(w, "email is required")
		return
	}

	existing, err := h.recipients.GetByEmail(r.Context(), rec.Email)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if existing != nil {
		httputil.Conflict(w, "a recipient with this email already exists")
		return
	}

	rec.IsActive = true
	if err := h.recipients.Create(r.Context(), &rec); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, rec)
}

func (h *Handlers) UpdateRecipient(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recipients.Get(r.Context(), idParam(r))
	if err != nil {
		if errors.Is(err, postgres.ErrRecipientNotFound) {
			httputil.NotFound(w, "recipient not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	var input struct {
		Name         *string            `json:"name"`
		FirstName    *string            `json:"first_name"`
		LastName     *string            `json:"last_name"`
		Company      *string            `json:"company"`
		CustomFields *map[string]string `json:"custom_fields"`
		IsActive     *bool              `json:"is_active"`
	}
	if !httputil.Decode(w, r, &input) {
		return
	}

	if input.Name != nil {
		rec.Name = *input.Name
	}
	if input.FirstName != nil {
		rec.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		rec.LastName = *input.LastName
	}
	if input.Company != nil {
		rec.Company = *input.Company
	}
	if input.CustomFields != nil {
		rec.CustomFields = *input.CustomFields
	}
	if input.IsActive != nil {
		rec.IsActive = *input.IsActive
	}

	if err := h.recipients.Update(r.Context(), rec); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// DeactivateRecipient soft-deletes: the row survives for historical log
// integrity but leaves every future dispatch.
func (h *Handlers) DeactivateRecipient(w http.ResponseWriter, r *http.Request) {
	if err := h.recipients.Deactivate(r.Context(), idParam(r)); err != nil {
		if errors.Is(err, postgres.ErrRecipientNotFound) {
			httputil.NotFound(w, "recipient not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ImportRecipients accepts a multipart upload under the "file" field with
// optional dry_run and update_existing boolean form fields.
func (h *Handlers) ImportRecipients(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxImportSize); err != nil {
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	opts := importer.Options{
		UpdateExisting: r.FormValue("update_existing") == "true",
		DryRun:         r.FormValue("dry_run") == "true",
		MaxFileSize:    h.maxImportSize,
	}

	res, err := h.importer.Import(r.Context(), file, opts)
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrEmptyFile),
			errors.Is(err, importer.ErrFileTooLarge),
			errors.Is(err, importer.ErrInvalidCSV),
			errors.Is(err, importer.ErrMissingColumns):
			httputil.BadRequest(w, err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.OK(w, res)
}
