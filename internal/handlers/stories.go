package handlers

import (
	"net/http"

	"veiled-verse/internal/apperr"
	"veiled-verse/internal/auth"
	"veiled-verse/internal/models"
	"veiled-verse/internal/session"
	"veiled-verse/internal/storage"
	"veiled-verse/internal/storystore"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StoriesHandler struct {
	sessions *session.Registry
	storage  *storage.Storage
	logger   *zap.Logger
}

func NewStoriesHandler(sessions *session.Registry, stor *storage.Storage, logger *zap.Logger) *StoriesHandler {
	return &StoriesHandler{
		sessions: sessions,
		storage:  stor,
		logger:   logger,
	}
}

// storyView is a story as shown to one reader. Content is blanked when the
// reader has not unlocked it.
type storyView struct {
	models.Story
	Locked   bool   `json:"locked"`
	Pending  bool   `json:"pending"`
	CoverURL string `json:"cover_url,omitempty"`
}

func (h *StoriesHandler) view(c *gin.Context, sess *session.Session, st models.Story) storyView {
	v := storyView{Story: st, Pending: storystore.IsLocalID(st.ID)}
	if !sess.Store.CanReadStory(st) {
		v.Content = ""
		v.Locked = true
	}
	if st.CoverKey != "" && h.storage != nil {
		if url, err := h.storage.CoverURL(c.Request.Context(), st.CoverKey); err == nil {
			v.CoverURL = url
		}
	}
	return v
}

func (h *StoriesHandler) views(c *gin.Context, sess *session.Session, stories []models.Story) []storyView {
	out := make([]storyView, len(stories))
	for i, st := range stories {
		out[i] = h.view(c, sess, st)
	}
	return out
}

// respondStory sends the story as it now stands in the caller's store.
func (h *StoriesHandler) respondStory(c *gin.Context, sess *session.Session, status int, id string) {
	st, ok := sess.Store.Story(id)
	if !ok {
		c.JSON(status, gin.H{"pending_actions": len(sess.Store.PendingActions())})
		return
	}
	c.JSON(status, gin.H{
		"story":           h.view(c, sess, st),
		"pending_actions": len(sess.Store.PendingActions()),
	})
}

func (h *StoriesHandler) ListStories(c *gin.Context) {
	var filters storystore.Filters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	if c.Query("refresh") == "true" {
		if _, err := sess.Store.LoadAll(c.Request.Context(), storystore.Scope{}); err != nil {
			respondError(c, err)
			return
		}
	}

	stories := sess.Store.FilteredStories(filters)
	c.JSON(http.StatusOK, gin.H{
		"stories": h.views(c, sess, stories),
		"count":   len(stories),
	})
}

func (h *StoriesHandler) MyStories(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	if c.Query("refresh") == "true" {
		if _, err := sess.Store.LoadMyStories(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
	}

	stories := sess.Store.MyStories()
	c.JSON(http.StatusOK, gin.H{
		"stories": h.views(c, sess, stories),
		"count":   len(stories),
	})
}

func (h *StoriesHandler) GetStory(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	st, err := sess.Store.GetStory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// unpublished stories are visible to their author and moderators only
	if st.Status != models.StatusApproved &&
		st.AuthorID != sess.Principal.UserID() &&
		!sess.Principal.HasPermission(auth.CapModerate) {
		respondError(c, apperr.NotFound("story"))
		return
	}

	c.JSON(http.StatusOK, h.view(c, sess, st))
}

func (h *StoriesHandler) CreateStory(c *gin.Context) {
	var input models.StoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	st, err := sess.Store.CreateNewStory(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if storystore.IsLocalID(st.ID) {
		status = http.StatusAccepted
	}
	h.respondStory(c, sess, status, st.ID)
}

func (h *StoriesHandler) UpdateStory(c *gin.Context) {
	var updates models.StoryUpdate
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := sess.Store.UpdateStoryData(c.Request.Context(), id, updates); err != nil {
		respondError(c, err)
		return
	}
	h.respondStory(c, sess, http.StatusOK, id)
}

func (h *StoriesHandler) DeleteStory(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	if err := sess.Store.DeleteStoryByID(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoriesHandler) SetStatus(c *gin.Context) {
	var req models.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := sess.Store.ModerateStory(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	h.respondStory(c, sess, http.StatusOK, id)
}

func (h *StoriesHandler) LikeStory(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := sess.Store.LikeStory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.respondStory(c, sess, http.StatusOK, id)
}

func (h *StoriesHandler) RateStory(c *gin.Context) {
	var req models.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := sess.Store.RateStory(c.Request.Context(), id, req.Rating); err != nil {
		respondError(c, err)
		return
	}
	h.respondStory(c, sess, http.StatusOK, id)
}

func (h *StoriesHandler) ViewStory(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	if err := sess.Store.ViewStory(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BuyStory charges the price stored on the story, never one sent by the client.
func (h *StoriesHandler) BuyStory(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	st, err := sess.Store.GetStory(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !st.IsPaid {
		respondError(c, apperr.Validation("this story is free"))
		return
	}

	if err := sess.Store.BuyStory(ctx, st.ID, st.Price); err != nil {
		respondError(c, err)
		return
	}
	h.respondStory(c, sess, http.StatusOK, st.ID)
}
