package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/clubdesk/ticket-service/internal/errs"
	"github.com/clubdesk/ticket-service/internal/model"
	"github.com/clubdesk/ticket-service/internal/service"
)

type TicketHandler struct {
	svc service.TicketServicer
	log *slog.Logger
}

func NewTicketHandler(svc service.TicketServicer, log *slog.Logger) *TicketHandler {
	return &TicketHandler{svc: svc, log: log}
}

// createTicketRequest принимает и JSON, и form-urlencoded.
type createTicketRequest struct {
	Club        string  `json:"club" form:"club"`
	PC          string  `json:"pc" form:"pc"`
	Description string  `json:"description" form:"description"`
	Status      string  `json:"status" form:"status"`
	Deadline    *string `json:"deadline" form:"deadline"`
	DeadlineAt  *string `json:"deadline_at" form:"deadline_at"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		abortError(c, http.StatusBadRequest, CodeInvalidBody)
		return
	}
	raw := req.DeadlineAt
	if raw == nil || strings.TrimSpace(*raw) == "" {
		raw = req.Deadline
	}
	var deadlineText string
	if raw != nil {
		deadlineText = *raw
	}
	deadline, err := model.ParseDeadline(deadlineText)
	if err != nil {
		writeError(c, h.log, errs.Validation("deadline", "invalid_deadline"))
		return
	}

	t, err := h.svc.Create(c.Request.Context(), model.NewTicket{
		Club:        req.Club,
		PC:          req.PC,
		Description: req.Description,
		Status:      req.Status,
		Deadline:    deadline,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	t, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// List отдаёт массив заявок. Некорректные limit/days игнорируются.
func (h *TicketHandler) List(c *gin.Context) {
	filter := model.TicketFilter{
		Status: c.Query("status"),
		Club:   c.Query("club"),
		Days:   queryInt(c, "days"),
		Limit:  queryInt(c, "limit"),
	}
	items, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if items == nil {
		items = []model.Ticket{}
	}
	c.JSON(http.StatusOK, items)
}

// optionalString различает "поле не передано", null и значение.
type optionalString struct {
	Set   bool
	Null  bool
	Value string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

func (o optionalString) ptr() *string {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

type updateTicketRequest struct {
	Status      optionalString `json:"status"`
	Club        optionalString `json:"club"`
	PC          optionalString `json:"pc"`
	Description optionalString `json:"description"`
	Deadline    optionalString `json:"deadline"`
	DeadlineAt  optionalString `json:"deadline_at"`
}

func (r updateTicketRequest) patch() (model.TicketPatch, error) {
	p := model.TicketPatch{
		Status:      r.Status.ptr(),
		Club:        r.Club.ptr(),
		PC:          r.PC.ptr(),
		Description: r.Description.ptr(),
	}
	d := r.DeadlineAt
	if !d.Set {
		d = r.Deadline
	}
	if d.Set {
		p.Deadline.Set = true
		if !d.Null {
			t, err := model.ParseDeadline(d.Value)
			if err != nil {
				return p, errs.Validation("deadline", "invalid_deadline")
			}
			p.Deadline.Value = t
		}
	}
	return p, nil
}

func (h *TicketHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	req, err := bindUpdate(c)
	if err != nil {
		abortError(c, http.StatusBadRequest, CodeInvalidBody)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	t, err := h.svc.Update(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func bindUpdate(c *gin.Context) (updateTicketRequest, error) {
	var req updateTicketRequest
	switch c.ContentType() {
	case binding.MIMEPOSTForm, binding.MIMEMultipartPOSTForm:
		for key, dst := range map[string]*optionalString{
			"status":      &req.Status,
			"club":        &req.Club,
			"pc":          &req.PC,
			"description": &req.Description,
			"deadline":    &req.Deadline,
			"deadline_at": &req.DeadlineAt,
		} {
			if v, ok := c.GetPostForm(key); ok {
				*dst = optionalString{Set: true, Null: v == "", Value: v}
			}
		}
		return req, nil
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
