package api

import (
	"errors"
	"net/http"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/httputil"
	"github.com/ignite/campaign-mailer/internal/repository/postgres"
)

func (h *Handlers) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	list, err := h.configs.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"configurations": list})
}

func (h *Handlers) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	c, err := h.configs.Get(r.Context(), idParam(r))
	if err != nil {
		if errors.Is(err, postgres.ErrConfigNotFound) {
			httputil.NotFound(w, "configuration not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var c domain.EmailConfiguration
	if !httputil.Decode(w, r, &c) {
		return
	}
	if c.Name == "" || c.FromEmail == "" {
		httputil.BadRequest(w, "name and from_email are required")
		return
	}
	if c.Type != domain.TransportSMTP && c.Type != domain.TransportSES {
		httputil.BadRequest(w, "type must be smtp or ses")
		return
	}
	if err := h.configs.Create(r.Context(), &c); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	c, err := h.configs.Get(r.Context(), idParam(r))
	if err != nil {
		if errors.Is(err, postgres.ErrConfigNotFound) {
			httputil.NotFound(w, "configuration not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	var input struct {
		Name         *string `json:"name"`
		SMTPHost     *string `json:"smtp_host"`
		SMTPPort     *int    `json:"smtp_port"`
		Username     *string `json:"username"`
		Password     *string `json:"password"`
		UseTLS       *bool   `json:"use_tls"`
		UseSSL       *bool   `json:"use_ssl"`
		SESRegion    *string `json:"ses_region"`
		SESAccessKey *string `json:"ses_access_key"`
		SESSecretKey *string `json:"ses_secret_key"`
		FromEmail    *string `json:"from_email"`
		FromName     *string `json:"from_name"`
		IsActive     *bool   `json:"is_active"`
		IsDefault    *bool   `json:"is_default"`
	}
	if !httputil.Decode(w, r, &input) {
		return
	}

	if input.Name != nil {
		c.Name = *input.Name
	}
	if input.SMTPHost != nil {
		c.SMTPHost = *input.SMTPHost
	}
	if input.SMTPPort != nil {
		c.SMTPPort = *input.SMTPPort
	}
	if input.Username != nil {
		c.Username = *input.Username
	}
	if input.Password != nil {
		c.Password = *input.Password
	}
	if input.UseTLS != nil {
		c.UseTLS = *input.UseTLS
	}
	if input.UseSSL != nil {
		c.UseSSL = *input.UseSSL
	}
	if input.SESRegion != nil {
		c.SESRegion = *input.SESRegion
	}
	if input.SESAccessKey != nil {
		c.SESAccessKey = *input.SESAccessKey
	}
	if input.SESSecretKey != nil {
		c.SESSecretKey = *input.SESSecretKey
	}
	if input.FromEmail != nil {
		c.FromEmail = *input.FromEmail
	}
	if input.FromName != nil {
		c.FromName = *input.FromName
	}
	if input.IsActive != nil {
		c.IsActive = *input.IsActive
	}
	if input.IsDefault != nil {
		c.IsDefault = *input.IsDefault
	}

	if err := h.configs.Update(r.Context(), c); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	if err := h.configs.Delete(r.Context(), idParam(r)); err != nil {
		if errors.Is(err, postgres.ErrConfigNotFound) {
			httputil.NotFound(w, "configuration not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
