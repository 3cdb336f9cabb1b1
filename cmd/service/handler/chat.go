package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/mentraflow/mentraflow/app/logic/v1"
	"github.com/mentraflow/mentraflow/app/response"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

type ChatRequest struct {
	Question    string                 `json:"question" form:"question" binding:"required"`
	DocumentIDs []string               `json:"document_ids" form:"document_ids"`
	History     []types.MessageContext `json:"history" form:"history"`
}

func (s *HttpSrv) Chat(c *gin.Context) {
	var (
		err error
		req ChatRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	workspaceID, _ := v1.InjectWorkspaceID(c)
	result, err := v1.NewChatLogic(c, s.Core).Ask(workspaceID, v1.ChatArgs{
		Question:    req.Question,
		DocumentIDs: req.DocumentIDs,
		History:     req.History,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, result)
}
