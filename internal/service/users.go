package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/contacts-api/internal/auth"
	"gitlab.com/dirk.krummacker/contacts-api/internal/avatar"
	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
)

// maxAvatarRequest leaves room for the multipart framing around the largest accepted image.
const maxAvatarRequest = avatar.MaxImageSize + 64<<10

const avatarTooLarge = "Avatar must not exceed 5 MB"

// me responds with the authenticated user.
//
//	> curl http://localhost:8080/api/users_prof/me/ --header "Authorization: Bearer $TOKEN"
func (h *handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewUserResponse(auth.CurrentUser(c)))
}

// updateAvatar replaces the avatar of the authenticated user with the uploaded image.
//
//	> curl http://localhost:8080/api/users_prof/avatar --request "PATCH" --header "Authorization: Bearer $TOKEN" --form "avatar=@me.png"
func (h *handler) updateAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarRequest)
	fileHeader, err := c.FormFile("avatar")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		abortWithDetail(c, http.StatusRequestEntityTooLarge, avatarTooLarge)
		return
	}
	if err != nil {
		abortWithValidation(c, inBody, errors.New("avatar: field required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abortWithServerError(c, "opening uploaded avatar failed", err)
		return
	}
	defer file.Close()

	user := auth.CurrentUser(c)
	url, err := h.Avatars.Upload(c.Request.Context(), user.Email, file, fileHeader.Header.Get("Content-Type"))
	if errors.Is(err, avatar.ErrTooLarge) {
		abortWithDetail(c, http.StatusRequestEntityTooLarge, avatarTooLarge)
		return
	}
	if err != nil {
		slog.Error("uploading avatar failed", "email", user.Email, "error", err)
		abortWithDetail(c, http.StatusBadGateway, "Avatar upload failed")
		return
	}
	updated, err := h.Users.UpdateAvatar(c.Request.Context(), user.Email, url)
	if err != nil {
		abortWithServerError(c, "storing avatar failed", err)
		return
	}
	c.JSON(http.StatusOK, model.NewUserResponse(updated))
}
