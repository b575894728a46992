package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ignite/campaign-mailer/internal/pkg/httputil"
	"github.com/ignite/campaign-mailer/internal/repository/postgres"
	"github.com/ignite/campaign-mailer/internal/schedule"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

// writeCampaignError maps service errors to HTTP statuses: missing rows to
// 404, lifecycle violations to 409, schedule-window problems to 400.
func writeCampaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrInvalidTransition),
		errors.Is(err, campaign.ErrPausedSendNow),
		errors.Is(err, campaign.ErrNotDeletable):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, schedule.ErrInvalidInterval),
		errors.Is(err, schedule.ErrEndBeforeStart),
		errors.Is(err, schedule.ErrEndWithOnce):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	list, total, err := h.campaigns.List(r.Context(), campaign.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"campaigns": list, "total": total})
}

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), idParam(r))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), input)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.UpdateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.campaigns.Update(r.Context(), idParam(r), input)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), idParam(r)); err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handlers) ActivateCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Activate(r.Context(), idParam(r))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Pause(r.Context(), idParam(r))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Resume(r.Context(), idParam(r))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Cancel(r.Context(), idParam(r))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// SendNowCampaign forces the campaign due. The dispatcher picks it up on
// its next tick, so the response is 202 rather than 200; a completed
// campaign yields a warning instead.
func (h *Handlers) SendNowCampaign(w http.ResponseWriter, r *http.Request) {
	c, forced, err := h.campaigns.SendNow(r.Context(), idParam(r))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	if !forced {
		httputil.OK(w, map[string]interface{}{
			"campaign": c,
			"warning":  "campaign is completed; send-now ignored",
		})
		return
	}
	httputil.Accepted(w, c)
}

func (h *Handlers) ListCampaignLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	logs, total, err := h.logs.List(r.Context(), postgres.LogFilter{
		CampaignID: idParam(r),
		Status:     q.Get("status"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"logs": logs, "total": total})
}
