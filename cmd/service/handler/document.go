package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	v1 "github.com/mentraflow/mentraflow/app/logic/v1"
	"github.com/mentraflow/mentraflow/app/response"
	"github.com/mentraflow/mentraflow/pkg/types"
	"github.com/mentraflow/mentraflow/pkg/utils"
)

type CreateDocumentRequest struct {
	Title    string          `json:"title" form:"title"`
	DocType  string          `json:"doc_type" form:"doc_type"`
	Content  string          `json:"content" form:"content" binding:"required"`
	Metadata json.RawMessage `json:"metadata" form:"metadata"`
	Ingest   bool            `json:"ingest" form:"ingest"`
}

type CreateDocumentResponse struct {
	Document *types.Document `json:"document"`
	RunID    string          `json:"run_id,omitempty"`
}

func (s *HttpSrv) CreateDocument(c *gin.Context) {
	var (
		err error
		req CreateDocumentRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	workspaceID, _ := v1.InjectWorkspaceID(c)
	logic := v1.NewDocumentLogic(c, s.Core)
	doc, err := logic.CreateDocument(workspaceID, v1.CreateDocumentArgs{
		Title:    req.Title,
		DocType:  req.DocType,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}

	res := CreateDocumentResponse{Document: doc}
	if req.Ingest {
		run, err := logic.Ingest(workspaceID, doc.ID)
		if err != nil {
			response.APIError(c, err)
			return
		}
		res.RunID = run.ID
	}
	response.APISuccess(c, res)
}

func (s *HttpSrv) GetDocument(c *gin.Context) {
	workspaceID, _ := v1.InjectWorkspaceID(c)
	doc, err := v1.NewDocumentLogic(c, s.Core).GetDocument(workspaceID, c.Param("id"))
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, doc)
}

type ListDocumentsRequest struct {
	Status   string `json:"status" form:"status"`
	Keywords string `json:"keywords" form:"keywords"`
	Page     uint64 `json:"page" form:"page"`
	PageSize uint64 `json:"pagesize" form:"pagesize"`
}

type ListDocumentsResponse struct {
	List  []types.Document `json:"list"`
	Total int64            `json:"total"`
}

func (s *HttpSrv) ListDocuments(c *gin.Context) {
	var (
		err error
		req ListDocumentsRequest
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
	list, total, err := v1.NewDocumentLogic(c, s.Core).ListDocuments(workspaceID, types.DocumentStatus(req.Status), req.Keywords, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, ListDocumentsResponse{List: list, Total: total})
}

func (s *HttpSrv) DeleteDocument(c *gin.Context) {
	workspaceID, _ := v1.InjectWorkspaceID(c)
	if err := v1.NewDocumentLogic(c, s.Core).DeleteDocument(workspaceID, c.Param("id")); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type EnqueueRunResponse struct {
	RunID string `json:"run_id"`
}

func (s *HttpSrv) IngestDocument(c *gin.Context) {
	workspaceID, _ := v1.InjectWorkspaceID(c)
	run, err := v1.NewDocumentLogic(c, s.Core).Ingest(workspaceID, c.Param("id"))
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, EnqueueRunResponse{RunID: run.ID})
}

type SummarizeDocumentRequest struct {
	MaxBullets int `json:"max_bullets" form:"max_bullets"`
}

func (s *HttpSrv) SummarizeDocument(c *gin.Context) {
	var (
		err error
		req SummarizeDocumentRequest
	)
	if c.Request.ContentLength > 0 {
		if err = utils.BindArgsWithGin(c, &req); err != nil {
			response.APIError(c, err)
			return
		}
	}

	input := map[string]any{}
	if req.MaxBullets > 0 {
		input["max_bullets"] = req.MaxBullets
	}

	workspaceID, _ := v1.InjectWorkspaceID(c)
	run, err := v1.NewRunLogic(c, s.Core).EnqueueDocumentAgent(workspaceID, c.Param("id"), types.AGENT_SUMMARY, input)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, EnqueueRunResponse{RunID: run.ID})
}

type GenerateFlashcardsRequest struct {
	CardType string `json:"card_type" form:"card_type"`
	MaxCards int    `json:"max_cards" form:"max_cards"`
}

func (s *HttpSrv) GenerateFlashcards(c *gin.Context) {
	var (
		err error
		req GenerateFlashcardsRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	input := map[string]any{}
	if req.CardType != "" {
		input["card_type"] = req.CardType
	}
	if req.MaxCards > 0 {
		input["max_cards"] = req.MaxCards
	}

	workspaceID, _ := v1.InjectWorkspaceID(c)
	run, err := v1.NewRunLogic(c, s.Core).EnqueueDocumentAgent(workspaceID, c.Param("id"), types.AGENT_FLASHCARD, input)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, EnqueueRunResponse{RunID: run.ID})
}

func (s *HttpSrv) ExtractDocumentKG(c *gin.Context) {
	workspaceID, _ := v1.InjectWorkspaceID(c)
	run, err := v1.NewRunLogic(c, s.Core).EnqueueDocumentAgent(workspaceID, c.Param("id"), types.AGENT_KG_EXTRACTION, nil)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, EnqueueRunResponse{RunID: run.ID})
}
