package model

// Session 当前认证状态，只能由 session.Store 修改
type Session struct {
	AccessToken  string      `json:"-"`
	RefreshToken string      `json:"-"`
	User         *UserRecord `json:"user,omitempty"`
}

// HasTokenPair access 与 refresh 总是成对出现
func (s Session) HasTokenPair() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}
