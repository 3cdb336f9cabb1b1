package v1

import (
	"context"

	"github.com/samber/lo"

	"github.com/mentraflow/mentraflow/pkg/types"
)

const (
	TOKEN_CONTEXT_KEY     = "__mf.access_user"
	LANGUAGE_KEY          = "__mf.accept_language"
	WORKSPACE_CONTEXT_KEY = "__mf.workspace_id"
)

// InjectUserClaims get user claims from context
func InjectUserClaims(ctx context.Context) (types.UserClaims, bool) {
	val, ok := ctx.Value(TOKEN_CONTEXT_KEY).(types.UserClaims)
	return val, ok
}

func InjectWorkspaceID(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(WORKSPACE_CONTEXT_KEY).(string)
	return val, ok
}

func InjectLanguage(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(LANGUAGE_KEY).(string)
	return val, ok
}

func GetContentByClientLanguage[T any](c context.Context, enRes T, cnRes T) T {
	clientLang, _ := InjectLanguage(c)
	return lo.If(clientLang == types.LANGUAGE_CN_KEY, cnRes).Else(enRes)
}
