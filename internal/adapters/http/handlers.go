package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app/orch"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch *orch.Orchestrator
}

type createRoomRequest struct {
	Title         string     `json:"title" binding:"required,max=80"`
	Stage         string     `json:"stage" binding:"required"`
	Bootcamp      string     `json:"bootcamp" binding:"max=64"`
	Capacity      int        `json:"capacity"`
	NextSessionAt *time.Time `json:"next_session_at"`
}

type renameRequest struct {
	Name string `json:"name" binding:"required,max=36"`
}

type listRoomsQuery struct {
	Stage    string `form:"stage"`
	Bootcamp string `form:"bootcamp"`
}

func (h *handlers) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"rooms":    h.orch.Registry.Len(),
		"sessions": h.orch.Sessions.Active(),
		"hub":      h.orch.Hub.Stats(),
	})
}

func (h *handlers) stages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": domain.Stages})
}

func (h *handlers) whoami(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Directory.GetOrCreate(userOf(c)))
}

func (h *handlers) rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.orch.Directory.Rename(userOf(c), req.Name)
	if err != nil {
		badRequest(c, err)
		return
	}
	sess := sessions.Default(c)
	sess.Set(sessionNameKey, user.Username)
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) myRooms(c *gin.Context) {
	rooms := h.orch.ListRooms(app.ListFilter{MemberID: userOf(c)})
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	stage, err := domain.ParseStage(req.Stage)
	if err != nil {
		writeError(c, err)
		return
	}
	p := domain.CreateRoomParams{
		HostID:   userOf(c),
		Stage:    stage,
		Capacity: req.Capacity,
		Title:    req.Title,
		Bootcamp: req.Bootcamp,
	}
	if req.NextSessionAt != nil {
		p.NextSessionAt = req.NextSessionAt.UTC()
	}
	room, err := h.orch.CreateRoom(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *handlers) listRooms(c *gin.Context) {
	var q listRoomsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	f := app.ListFilter{Bootcamp: q.Bootcamp}
	if q.Stage != "" {
		stage, err := domain.ParseStage(q.Stage)
		if err != nil {
			writeError(c, err)
			return
		}
		f.Stage = stage
	}
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.ListRooms(f)})
}

func (h *handlers) getRoom(c *gin.Context) {
	room, err := h.orch.GetRoom(domain.RoomID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *handlers) apply(c *gin.Context) {
	h.respondRoom(c, http.StatusOK)(h.orch.Apply(c.Request.Context(), domain.RoomID(c.Param("id")), userOf(c)))
}

func (h *handlers) withdraw(c *gin.Context) {
	h.respondRoom(c, http.StatusOK)(h.orch.Withdraw(c.Request.Context(), domain.RoomID(c.Param("id")), userOf(c)))
}

func (h *handlers) approve(c *gin.Context) {
	h.respondRoom(c, http.StatusOK)(h.orch.Approve(c.Request.Context(),
		domain.RoomID(c.Param("id")), userOf(c), domain.UserID(c.Param("uid"))))
}

func (h *handlers) reject(c *gin.Context) {
	h.respondRoom(c, http.StatusOK)(h.orch.Reject(c.Request.Context(),
		domain.RoomID(c.Param("id")), userOf(c), domain.UserID(c.Param("uid"))))
}

func (h *handlers) closeRoom(c *gin.Context) {
	h.respondRoom(c, http.StatusOK)(h.orch.Close(c.Request.Context(), domain.RoomID(c.Param("id")), userOf(c)))
}

func (h *handlers) session(c *gin.Context) {
	snap, err := h.orch.SessionSnapshot(c.Request.Context(), domain.RoomID(c.Param("id")), userOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) respondRoom(c *gin.Context, status int) func(domain.Room, error) {
	return func(room domain.Room, err error) {
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(status, room)
	}
}
