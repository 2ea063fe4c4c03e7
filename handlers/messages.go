package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/messages"
	"github.com/clubhub/clubhub/backend/go-services/internal/realtime"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/gin-gonic/gin"
)

type MessagesHandler struct {
	svc *messages.Service
	hub *realtime.Hub
	// maxBody caps a multipart send request.
	maxBody int64
}

func NewMessagesHandler(svc *messages.Service, hub *realtime.Hub, maxBody int64) *MessagesHandler {
	if maxBody <= 0 {
		maxBody = 64 << 20
	}
	return &MessagesHandler{svc: svc, hub: hub, maxBody: maxBody}
}

func participant(c *gin.Context) (messages.Participant, bool) {
	p, ok := caller(c)
	return messages.Participant{ID: p.ID, Name: p.Name}, ok
}

func formFiles(form *multipart.Form) []*multipart.FileHeader {
	files := form.File["attachments[]"]
	return append(files, form.File["attachments"]...)
}

// Send accepts JSON, or multipart form fields plus attachments[] files.
func (h *MessagesHandler) Send(c *gin.Context) {
	from, ok := participant(c)
	if !ok {
		return
	}
	var in messages.SendInput
	var uploads []messages.Upload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
		if err := c.ShouldBind(&in); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for _, fh := range formFiles(form) {
			f, err := fh.Open()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("attachment %s: %v", fh.Filename, err)})
				return
			}
			defer f.Close()
			uploads = append(uploads, messages.Upload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Body:        f,
			})
		}
	} else if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.Send(c.Request.Context(), from, in, uploads)
	respond(c, http.StatusCreated, m, err)
}

func (h *MessagesHandler) Conversations(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	convs, err := h.svc.Conversations(c.Request.Context(), p.ID)
	if convs == nil {
		convs = []messages.Conversation{}
	}
	respond(c, http.StatusOK, gin.H{"items": convs}, err)
}

func (h *MessagesHandler) Thread(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var q messages.ThreadQuery
	if !bindQuery(c, &q) {
		return
	}
	items, err := h.svc.Thread(c.Request.Context(), p.ID, c.Param("id"), q)
	if items == nil {
		items = []messages.Message{}
	}
	respond(c, http.StatusOK, gin.H{"items": items}, err)
}

func (h *MessagesHandler) MarkRead(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(c.Request.Context(), p.ID, c.Param("id"))
	respond(c, http.StatusOK, gin.H{"marked": n}, err)
}

func (h *MessagesHandler) UnreadCount(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	n, err := h.svc.UnreadCount(c.Request.Context(), p.ID)
	respond(c, http.StatusOK, gin.H{"count": n}, err)
}

func (h *MessagesHandler) Delete(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), p.ID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MessagesHandler) Attachment(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	att, rc, err := h.svc.Attachment(c.Request.Context(), p.ID, c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		fail(c, err)
		return
	}
	defer rc.Close()
	c.Header("Content-Type", att.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	c.Header("Content-Length", fmt.Sprint(att.Size))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.Warnf("attachment %s: stream: %v", att.ID, err)
	}
}

const attachmentLinkTTL = 15 * time.Minute

// AttachmentLink hands out a presigned download URL. Stores that cannot
// presign get the streaming route instead.
func (h *MessagesHandler) AttachmentLink(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	url, err := h.svc.AttachmentURL(c.Request.Context(), p.ID, c.Param("id"), c.Param("attachmentId"), attachmentLinkTTL)
	if err != nil {
		fail(c, err)
		return
	}
	if url == "" {
		url = strings.TrimSuffix(c.Request.URL.Path, "/link")
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expiresIn": int(attachmentLinkTTL.Seconds())})
}

// Live upgrades to a WebSocket that receives the caller's events.
func (h *MessagesHandler) Live(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	if err := h.hub.ServeWS(c.Writer, c.Request, p.ID); err != nil {
		logger.Debugf("ws upgrade for %s: %v", p.ID, err)
	}
}
