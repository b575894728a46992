package api

import (
	"errors"
	"net/http"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/httputil"
	"github.com/ignite/campaign-mailer/internal/repository/postgres"
)

func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.templates.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"templates": list})
}

func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.Get(r.Context(), idParam(r))
	if err != nil {
		if errors.Is(err, postgres.ErrTemplateNotFound) {
			httputil.NotFound(w, "template not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.EmailTemplate
	if !httputil.Decode(w, r, &t) {
		return
	}
	if t.Name == "" || t.Subject == "" {
		httputil.BadRequest(w, "name and subject are required")
		return
	}
	if err := h.templates.Create(r.Context(), &t); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, t)
}

func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.Get(r.Context(), idParam(r))
	if err != nil {
		if errors.Is(err, postgres.ErrTemplateNotFound) {
			httputil.NotFound(w, "template not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	var input struct {
		Name    *string `json:"name"`
		Subject *string `json:"subject"`
		Body    *string `json:"body"`
		IsHTML  *bool   `json:"is_html"`
	}
	if !httputil.Decode(w, r, &input) {
		return
	}

	if input.Name != nil {
		t.Name = *input.Name
	}
	if input.Subject != nil {
		t.Subject = *input.Subject
	}
	if input.Body != nil {
		t.Body = *input.Body
	}
	if input.IsHTML != nil {
		t.IsHTML = *input.IsHTML
	}

	if err := h.templates.Update(r.Context(), t); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), idParam(r)); err != nil {
		if errors.Is(err, postgres.ErrTemplateNotFound) {
			httputil.NotFound(w, "template not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
