package middleware

import (
	"net/http"
	"strings"

	"github.com/beego/beego/v2/server/web/context"
)

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type, Authorization, X-Requested-With, X-Request-Id, Accept, Origin"
)

// CORS 返回跨域过滤器；allowed 为空时放行所有来源
func CORS(allowed []string) func(*context.Context) {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			set[o] = struct{}{}
		}
	}

	return func(ctx *context.Context) {
		origin := ctx.Input.Header("Origin")
		if origin != "" {
			if _, ok := set[origin]; ok || len(set) == 0 {
				ctx.Output.Header("Access-Control-Allow-Origin", origin)
				ctx.Output.Header("Vary", "Origin")
			}
		}
		ctx.Output.Header("Access-Control-Allow-Methods", allowMethods)
		ctx.Output.Header("Access-Control-Allow-Headers", allowHeaders)
		ctx.Output.Header("Access-Control-Max-Age", "3600")

		if ctx.Input.Method() == http.MethodOptions {
			ctx.Output.SetStatus(http.StatusNoContent)
			ctx.Output.Body([]byte(""))
		}
	}
}
