package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/mentraflow/mentraflow/app/logic/v1"
	"github.com/mentraflow/mentraflow/app/response"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

type GetKnowledgeGraphRequest struct {
	Page     uint64 `json:"page" form:"page"`
	PageSize uint64 `json:"pagesize" form:"pagesize"`
}

func (s *HttpSrv) GetKnowledgeGraph(c *gin.Context) {
	var (
		err error
		req GetKnowledgeGraphRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 || req.PageSize > 500 {
		req.PageSize = 200
	}

	workspaceID, _ := v1.InjectWorkspaceID(c)
	graph, err := v1.NewKGLogic(c, s.Core).GetGraph(workspaceID, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, graph)
}
