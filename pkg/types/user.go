package types

// UserClaims 请求方身份信息，由接入层从请求头解析后注入 context
type UserClaims struct {
	Appid string `json:"aid"`
	User  string `json:"u"` // 对应平台的用户唯一标识
}
