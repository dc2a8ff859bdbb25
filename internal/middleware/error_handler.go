package middleware

import (
	"errors"

	apiError "github.com/Quai1921/SmartClass-sub000/internal/errors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func ErrorHandler(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			var apiErr *apiError.APIError

			// if it's our custom APIError
			if !errors.As(err, &apiErr) {
				// If it's a raw error we didn't wrap, treat as Internal
				apiErr = apiError.Internal(err)
			}

			// LOGGING
			event := log.Info()
			if apiErr.Status >= 500 {
				event = log.Error()
			}
			event.Err(apiErr.Internal).
				Int("status", apiErr.Status).
				Str("method", c.Request.Method).
				Str("path", c.FullPath()).
				Msg(apiErr.Message)

			// Respond with JSON
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
		}
	}
}
