package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/memed/arena/internal/domain"
)

func (s *Server) handleCommentCreate(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidation(c, []fieldError{{Field: "body", Message: "invalid JSON body"}})
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	req.TokenAddress = strings.TrimSpace(req.TokenAddress)
	req.UserAddress = strings.TrimSpace(req.UserAddress)
	if err := s.validate.Struct(req); err != nil {
		writeValidation(c, fieldErrors(err))
		return
	}
	req.TokenAddress = domain.NormalizeAddress(req.TokenAddress)
	req.UserAddress = domain.NormalizeAddress(req.UserAddress)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	comment, err := s.insertComment(ctx, req, time.Now().UTC())
	if errors.Is(err, errBadParent) {
		writeValidation(c, []fieldError{{Field: "replyToId", Message: err.Error()}})
		return
	}
	if err != nil {
		s.logFor(c).WithError(err).Error("insert comment")
		writeError(c, http.StatusInternalServerError, "failed to create comment")
		return
	}
	writeJSON(c, http.StatusCreated, comment)
}

func (s *Server) handleCommentsList(c *gin.Context) {
	address := domain.NormalizeAddress(c.Param("tokenAddress"))
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	tokenID, ok, err := s.tokenID(ctx, address)
	if err != nil {
		s.logFor(c).WithError(err).Error("lookup token")
		writeError(c, http.StatusInternalServerError, "failed to load comments")
		return
	}
	if !ok {
		writeError(c, http.StatusNotFound, "token not found")
		return
	}
	comments, err := s.listComments(ctx, tokenID, address)
	if err != nil {
		s.logFor(c).WithError(err).Error("list comments")
		writeError(c, http.StatusInternalServerError, "failed to load comments")
		return
	}
	writeJSON(c, http.StatusOK, comments)
}
