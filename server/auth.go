package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/handler"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func bindCredentials(c *gin.Context) (credentials, error) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return credentials{}, apperrors.Validation(apperrors.CodeMissingFields, "auth.bind", "Email and password are required")
	}
	return in, nil
}

func (s *Server) register(c *gin.Context) {
	in, err := bindCredentials(c)
	if err != nil {
		fail(c, err)
		return
	}
	if _, err := s.deps.Accounts.Register(c.Request.Context(), in.Email, in.Password); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (s *Server) login(c *gin.Context) {
	in, err := bindCredentials(c)
	if err != nil {
		fail(c, err)
		return
	}
	token, err := s.deps.Accounts.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if _, err := handler.Authenticate(c.Request.Context(), s.deps.Accounts, header); err != nil {
		fail(c, err)
		return
	}
	token, _ := handler.BearerToken(header)
	if err := s.deps.Accounts.Logout(c.Request.Context(), token); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
