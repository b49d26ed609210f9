package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/archstudio/intake/internal/i18n"
	"github.com/archstudio/intake/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
	// UserMessage is the localized text for pipeline failures.
	UserMessage string `json:"user_message,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		body := APIError{Code: ae.Code, Message: ae.Message}
		if key := i18n.KeyFor(err); key != i18n.KeyGeneric {
			body.UserMessage = i18n.T(localeOf(c), key)
		}
		c.JSON(status, body)
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if s := c.GetString("user_id"); s != "" {
		return s, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

// localeOf prefers the locale claim of the token, then Accept-Language.
// Empty means the default locale.
func localeOf(c *gin.Context) string {
	if l := c.GetString("locale"); l != "" {
		return l
	}
	tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}
