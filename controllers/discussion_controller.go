package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/anonid/services"
)

// DiscussionController serves comment and popular discussion callables.
type DiscussionController struct {
	discussions *services.DiscussionService
}

// NewDiscussionController creates a new controller instance.
func NewDiscussionController(svc *services.Services) *DiscussionController {
	return &DiscussionController{discussions: svc.Discussions}
}

type createCommentRequest struct {
	UID          string `json:"uid"`
	DiscussionID string `json:"discussionId"`
	NewsURL      string `json:"newsUrl"`
	Content      string `json:"content"`
}

// CreateComment posts a comment to a discussion.
func (d *DiscussionController) CreateComment(ctx *gin.Context) {
	const op = "createComment"
	var req createCommentRequest
	if !bind(ctx, op, &req) {
		return
	}
	id, err := d.discussions.CreateComment(ctx.Request.Context(), req.UID, req.DiscussionID, req.NewsURL, req.Content)
	if err != nil {
		fail(ctx, op, err)
		return
	}
	succeed(ctx, op, gin.H{"commentId": id})
}

// GetPopularDiscussions returns the last refreshed popular discussions.
func (d *DiscussionController) GetPopularDiscussions(ctx *gin.Context) {
	const op = "getPopularDiscussions"
	out, err := d.discussions.PopularDiscussions(ctx.Request.Context())
	if err != nil {
		fail(ctx, op, err)
		return
	}
	succeed(ctx, op, out)
}
