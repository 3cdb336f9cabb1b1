package srv

type Srv struct {
	ai *AI
}

type ApplyFunc func(*Srv)

func SetupSrvs(opts ...ApplyFunc) *Srv {
	a := &Srv{}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (s *Srv) AI() AIDriver {
	return s.ai
}

// AIStatus AI 服务当前状态，用于健康检查
func (s *Srv) AIStatus() map[string]interface{} {
	if s.ai == nil {
		return map[string]interface{}{
			"status": "not_initialized",
		}
	}

	return map[string]interface{}{
		"status":          "running",
		"driver":          s.ai.driverName,
		"chat_available":  s.ai.generation != nil,
		"embed_available": s.ai.embedding != nil,
	}
}
