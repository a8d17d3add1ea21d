package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studentattendance/internal/access"
	"studentattendance/internal/auth"
	"studentattendance/internal/identity"
)

type registerRequest struct {
	Email          string  `json:"email" binding:"required,email"`
	Password       string  `json:"password" binding:"required"`
	FullName       string  `json:"full_name" binding:"required,notblank"`
	Role           string  `json:"role" binding:"omitempty,oneof=student lecturer admin"`
	PhoneNumber    *string `json:"phone_number"`
	StudentID      *string `json:"student_id"`
	Department     *string `json:"department"`
	YearOfStudy    *int    `json:"year_of_study" binding:"omitempty,min=1,max=10"`
	EmployeeID     *string `json:"employee_id"`
	Specialization *string `json:"specialization"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"verification_code" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken      string         `json:"access_token"`
	RefreshToken     string         `json:"refresh_token"`
	TokenType        string         `json:"token_type"`
	ExpiresAt        time.Time      `json:"expires_at"`
	RefreshExpiresAt time.Time      `json:"refresh_expires_at"`
	User             *identity.User `json:"user,omitempty"`
}

func newTokenResponse(p auth.TokenPair, u *identity.User) tokenResponse {
	return tokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "bearer",
		ExpiresAt:        p.AccessExp,
		RefreshExpiresAt: p.RefreshExp,
		User:             u,
	}
}

func (a *api) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := a.Identity.Register(c.Request.Context(), identity.Registration{
		Email:          req.Email,
		Password:       req.Password,
		FullName:       req.FullName,
		Role:           access.Role(req.Role),
		PhoneNumber:    req.PhoneNumber,
		StudentNumber:  req.StudentID,
		Department:     req.Department,
		YearOfStudy:    req.YearOfStudy,
		EmployeeID:     req.EmployeeID,
		Specialization: req.Specialization,
	})
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (a *api) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := a.Identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(res.Tokens, &res.User))
}

func (a *api) verifyEmail(c *gin.Context) {
	var req verifyRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := a.Identity.VerifyEmail(c.Request.Context(), req.Email, req.Code); err != nil {
		fail(c, a.Log, err)
		return
	}
	message(c, http.StatusOK, "Email verified successfully")
}

func (a *api) resendVerification(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := a.Identity.ResendVerification(c.Request.Context(), req.Email); err != nil {
		fail(c, a.Log, err)
		return
	}
	message(c, http.StatusOK, "Verification code sent")
}

func (a *api) forgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := a.Identity.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		fail(c, a.Log, err)
		return
	}
	message(c, http.StatusOK, "If the email exists, a reset link has been sent")
}

func (a *api) resetPassword(c *gin.Context) {
	var req resetRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := a.Identity.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		fail(c, a.Log, err)
		return
	}
	message(c, http.StatusOK, "Password reset successfully")
}

// refresh reads the refresh token from the Authorization header, falling
// back to a JSON body.
func (a *api) refresh(c *gin.Context) {
	token, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		var req refreshRequest
		if !bindJSON(c, &req) {
			return
		}
		token = req.RefreshToken
	}
	pair, err := a.Identity.Refresh(c.Request.Context(), token)
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(pair, nil))
}

func (a *api) me(c *gin.Context) {
	caller := auth.CallerFrom(c)
	u, err := a.Identity.Get(c.Request.Context(), caller, caller.ID)
	if err != nil {
		fail(c, a.Log, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
