package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/mentraflow/mentraflow/app/logic/v1"
	"github.com/mentraflow/mentraflow/app/response"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

type ListFlashcardsRequest struct {
	DocumentID string `json:"document_id" form:"document_id"`
	BatchID    string `json:"batch_id" form:"batch_id"`
	Page       uint64 `json:"page" form:"page"`
	PageSize   uint64 `json:"pagesize" form:"pagesize"`
}

type ListFlashcardsResponse struct {
	List []types.Flashcard `json:"list"`
}

func (s *HttpSrv) ListFlashcards(c *gin.Context) {
	var (
		err error
		req ListFlashcardsRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 || req.PageSize > 100 {
		req.PageSize = 50
	}

	workspaceID, _ := v1.InjectWorkspaceID(c)
	list, err := v1.NewFlashcardLogic(c, s.Core).ListFlashcards(workspaceID, req.DocumentID, req.BatchID, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, ListFlashcardsResponse{List: list})
}

func (s *HttpSrv) DeleteFlashcard(c *gin.Context) {
	workspaceID, _ := v1.InjectWorkspaceID(c)
	if err := v1.NewFlashcardLogic(c, s.Core).DeleteFlashcard(workspaceID, c.Param("id")); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}
