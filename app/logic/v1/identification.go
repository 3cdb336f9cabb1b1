package v1

import (
	"context"
	"log/slog"

	"github.com/mentraflow/mentraflow/app/core"
	"github.com/mentraflow/mentraflow/pkg/types"
)

type _userInfo struct {
	ctx  context.Context
	core *core.Core
	u    *types.UserClaims
}

func (u *_userInfo) GetUserInfo() types.UserClaims {
	return *u.u
}

func SetupUserInfo(ctx context.Context, core *core.Core) UserInfo {
	userInfo, ok := InjectUserClaims(ctx)
	if !ok {
		slog.Error("Not found user in context", slog.String("component", "logic.v1.setupUserInfo"))
		userInfo = types.UserClaims{}
	}
	return &_userInfo{
		ctx:  ctx,
		core: core,
		u:    &userInfo,
	}
}

type UserInfo interface {
	GetUserInfo() types.UserClaims
}
