package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/mentraflow/mentraflow/app/core"
	v1 "github.com/mentraflow/mentraflow/app/logic/v1"
	"github.com/mentraflow/mentraflow/app/response"
	"github.com/mentraflow/mentraflow/pkg/errors"
	"github.com/mentraflow/mentraflow/pkg/i18n"
	"github.com/mentraflow/mentraflow/pkg/types"
)

const (
	USER_HEADER_KEY      = "X-User-ID"
	WORKSPACE_HEADER_KEY = "X-Workspace-ID"
	APPID_HEADER_KEY     = "X-Appid"
)

func I18n() gin.HandlerFunc {
	var allowList []string
	for k := range i18n.ALLOW_LANG {
		allowList = append(allowList, k)
	}
	l := i18n.NewLocalizer(allowList...)

	return response.ProvideResponseLocalizer(l)
}

// AcceptLanguage 目前服务端支持 en: English, zh-CN: 简体中文
func AcceptLanguage() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		lang := ctx.Request.Header.Get("Accept-Language")
		ctx.Set(v1.LANGUAGE_KEY, lo.If(strings.Contains(lang, "zh"), types.LANGUAGE_CN_KEY).Else(types.LANGUAGE_EN_KEY))
	}
}

// Identity 身份由上游网关校验，这里只负责从请求头还原用户与工作区。
// 两个头缺一不可，缺失直接拒绝。
func Identity(appCore *core.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Request.Header.Get(USER_HEADER_KEY)
		if userID == "" {
			response.APIError(c, errors.New("middleware.Identity.UserID", i18n.ERROR_UNAUTHORIZED, nil).Code(http.StatusUnauthorized))
			return
		}

		workspaceID := c.Request.Header.Get(WORKSPACE_HEADER_KEY)
		if workspaceID == "" {
			response.APIError(c, errors.New("middleware.Identity.WorkspaceID", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
			return
		}

		appid := c.Request.Header.Get(APPID_HEADER_KEY)
		if appid == "" {
			appid = types.DEFAULT_APPID
		}

		claims := types.UserClaims{
			Appid: appid,
			User:  userID,
		}

		c.Set(v1.TOKEN_CONTEXT_KEY, claims)
		c.Set(v1.WORKSPACE_CONTEXT_KEY, workspaceID)
		c.Set("user_id", userID)
	}
}

// Metrics 记录接口耗时与错误数
func Metrics(appCore *core.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		timer := appCore.Metrics().ApiResponseTimer(path)
		c.Next()
		timer.ObserveDuration()

		if c.Writer.Status() >= http.StatusBadRequest {
			appCore.Metrics().ApiErrorInc(c.Request.Method, path, c.Writer.Status())
		}
	}
}

func Cors(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}
