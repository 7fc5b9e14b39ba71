package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

// Success and Error write the enveloped JSON used by the auxiliary endpoints.
func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// AssistantText writes a plain text body. Chat clients render the body of a
// failed request as the assistant message, so errors use this too.
func AssistantText(c *gin.Context, status int, text string) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(status, "%s", text)
}
