package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/mentraflow/mentraflow/app/logic/v1"
	"github.com/mentraflow/mentraflow/app/response"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

func (s *HttpSrv) GetRun(c *gin.Context) {
	workspaceID, _ := v1.InjectWorkspaceID(c)
	detail, err := v1.NewRunLogic(c, s.Core).GetRun(workspaceID, c.Param("id"))
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, detail)
}

type ListRunsRequest struct {
	AgentName  string `json:"agent_name" form:"agent_name"`
	DocumentID string `json:"document_id" form:"document_id"`
	Page       uint64 `json:"page" form:"page"`
	PageSize   uint64 `json:"pagesize" form:"pagesize"`
}

type ListRunsResponse struct {
	List []types.AgentRun `json:"list"`
}

func (s *HttpSrv) ListRuns(c *gin.Context) {
	var (
		err error
		req ListRunsRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 || req.PageSize > 50 {
		req.PageSize = 20
	}

	workspaceID, _ := v1.InjectWorkspaceID(c)
	list, err := v1.NewRunLogic(c, s.Core).ListRuns(workspaceID, types.AgentName(req.AgentName), req.DocumentID, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, ListRunsResponse{List: list})
}
