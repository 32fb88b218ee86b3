package liveness

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/loykin/selfheal/internal/instance"
	"github.com/loykin/selfheal/internal/metrics"
)

// Message is the fixed liveness payload. It is the same for every instance.
const Message = "Self-Healing App is Running 🚀"

// Identity headers let callers tell instances apart without changing the body.
const (
	HeaderInstanceID  = "X-Instance-Id"
	HeaderInstancePID = "X-Instance-Pid"
)

// Handler reports that the process is alive. Its responsiveness is the signal;
// there is no error response.
type Handler struct {
	inst *instance.Instance
}

func New(inst *instance.Instance) *Handler {
	return &Handler{inst: inst}
}

func (h *Handler) Handle(c *gin.Context) {
	metrics.IncLivenessRequest()
	c.Header(HeaderInstanceID, h.inst.ID)
	c.Header(HeaderInstancePID, strconv.Itoa(h.inst.PID))
	c.String(http.StatusOK, Message)
}
