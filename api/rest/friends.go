package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fusionchat/server/audit"
	mw "github.com/fusionchat/server/middleware"
	"github.com/fusionchat/server/relation"
)

// FriendsHandler handles friend graph REST endpoints.
type FriendsHandler struct {
	engine *relation.Engine
	audit  *audit.Service
}

// NewFriendsHandler creates a new FriendsHandler.
func NewFriendsHandler(engine *relation.Engine, auditSvc *audit.Service) *FriendsHandler {
	return &FriendsHandler{engine: engine, audit: auditSvc}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *FriendsHandler) logAction(c *gin.Context, action string, targetID int64, err error) {
	userID := mw.GetUserID(c)
	entry := audit.AuditEntry{
		TraceID: mw.GetTraceID(c),
		UserID:  &userID,
		Action:  action,
		Request: map[string]int64{"target_id": targetID},
		IP:      c.ClientIP(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	h.audit.Log(entry)
}

// List handles GET /api/friends.
func (h *FriendsHandler) List(c *gin.Context) {
	friends, err := h.engine.ListFriends(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// Request handles POST /api/friends/request/:id.
func (h *FriendsHandler) Request(c *gin.Context) {
	targetID, ok := pathID(c)
	if !ok {
		return
	}
	req, err := h.engine.SendRequest(c.Request.Context(), mw.GetUserID(c), targetID)
	h.logAction(c, "friend_request", targetID, err)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request_id": req.ID})
}

// Accept handles POST /api/friends/accept/:id (id is the request ID).
func (h *FriendsHandler) Accept(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	err := h.engine.AcceptRequest(c.Request.Context(), mw.GetUserID(c), requestID)
	h.logAction(c, "friend_accept", requestID, err)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "accepted"})
}

// Delete handles DELETE /api/friends/:id.
func (h *FriendsHandler) Delete(c *gin.Context) {
	friendID, ok := pathID(c)
	if !ok {
		return
	}
	err := h.engine.DeleteFriend(c.Request.Context(), mw.GetUserID(c), friendID)
	h.logAction(c, "friend_delete", friendID, err)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// Block handles POST /api/friends/block/:id.
func (h *FriendsHandler) Block(c *gin.Context) {
	targetID, ok := pathID(c)
	if !ok {
		return
	}
	err := h.engine.Block(c.Request.Context(), mw.GetUserID(c), targetID)
	h.logAction(c, "user_block", targetID, err)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "blocked"})
}

// Unblock handles POST /api/friends/unblock/:id.
func (h *FriendsHandler) Unblock(c *gin.Context) {
	targetID, ok := pathID(c)
	if !ok {
		return
	}
	err := h.engine.Unblock(c.Request.Context(), mw.GetUserID(c), targetID)
	h.logAction(c, "user_unblock", targetID, err)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unblocked"})
}

// Requests handles GET /api/friends/requests.
func (h *FriendsHandler) Requests(c *gin.Context) {
	requests, err := h.engine.ListIncomingRequests(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// Search handles GET /api/friends/search?q=<name>.
func (h *FriendsHandler) Search(c *gin.Context) {
	results, err := h.engine.SearchCandidates(c.Request.Context(), mw.GetUserID(c), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": results})
}

// Online handles GET /api/friends/online.
func (h *FriendsHandler) Online(c *gin.Context) {
	results, err := h.engine.DiscoverOnline(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": results})
}
