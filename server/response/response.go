package response

import (
	"github.com/gin-gonic/gin"

	errs "github.com/roadpulse/roadpulse/errors"
)

// JSON writes the standard response envelope: {success, message, data, errors}.
// When err is an *errs.Error its status overrides the one passed in, so
// services can bubble up the right code without every handler re-mapping it.
func JSON(c *gin.Context, message string, status int, data interface{}, err error) {
	errMessage := ""
	if err != nil {
		if e, ok := err.(*errs.Error); ok {
			status = e.Status
			errMessage = e.Message
		} else if gin.Mode() != gin.ReleaseMode {
			errMessage = err.Error()
		} else {
			errMessage = "internal server error"
		}
	}

	responsedata := gin.H{
		"success": err == nil && status < 400,
		"message": message,
		"data":    data,
	}
	if errMessage != "" {
		responsedata["errors"] = errMessage
	}

	c.JSON(status, responsedata)
}
