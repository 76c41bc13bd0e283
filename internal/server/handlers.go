package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuygur/llm-council/internal/council"
	"github.com/cuygur/llm-council/internal/export"
	"github.com/cuygur/llm-council/internal/models"
	"github.com/cuygur/llm-council/internal/openrouter"
	"github.com/cuygur/llm-council/internal/pricing"
	"github.com/cuygur/llm-council/internal/storage"
)

type configUpdateRequest struct {
	CouncilModels  []string          `json:"council_models" binding:"required,min=1"`
	ChairmanModel  string            `json:"chairman_model" binding:"required"`
	AuxiliaryModel string            `json:"auxiliary_model"`
	Personas       map[string]string `json:"model_personas"`
	Mode           string            `json:"mode"`
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type estimateRequest struct {
	Models         []string `json:"models"`
	Prompt         string   `json:"prompt" binding:"required"`
	ResponseTokens int      `json:"response_tokens"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "LLM Council API"})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	var req configUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.roster = council.Config{
		CouncilModels:  req.CouncilModels,
		ChairmanModel:  req.ChairmanModel,
		AuxiliaryModel: req.AuxiliaryModel,
		Personas:       req.Personas,
		Mode:           req.Mode,
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "success", "config": s.snapshot()})
}

func (s *Server) handleModels(c *gin.Context) {
	if s.lister == nil {
		c.JSON(http.StatusOK, gin.H{"models": models.DefaultCatalog()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models.Fetch(c.Request.Context(), s.lister)})
}

func (s *Server) handleEstimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Models) == 0 {
		req.Models = s.snapshot().CouncilModels
	}
	if req.ResponseTokens <= 0 {
		req.ResponseTokens = 1000
	}
	c.JSON(http.StatusOK, pricing.EstimateQuery(req.Models, req.Prompt, req.ResponseTokens))
}

func (s *Server) handleListConversations(c *gin.Context) {
	list, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	cfg := s.snapshot()
	conv, err := s.store.Create(storage.Options{
		CouncilModels: cfg.CouncilModels,
		ChairmanModel: cfg.ChairmanModel,
		Personas:      cfg.Personas,
		Mode:          cfg.Mode,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleGetConversation(c *gin.Context) {
	conv, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	if err := s.store.Delete(c.Param("id")); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleExport(c *gin.Context) {
	conv, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}

	switch format := c.DefaultQuery("format", "markdown"); format {
	case "markdown":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.md", conv.ID))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(export.Markdown(conv)))
	case "json":
		out, err := export.JSON(conv, true)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", conv.ID))
		c.Data(http.StatusOK, "application/json", []byte(out))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be markdown or json"})
	}
}

// handleMessage runs the full council synchronously and returns the result
// in one JSON response.
func (s *Server) handleMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	conv, err := s.store.Get(id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	isFirst := len(conv.Messages) == 0

	if err := s.store.AppendUserMessage(id, req.Content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	cfg := s.runConfig(ctx, req.Content)

	if isFirst {
		title := council.GenerateTitle(ctx, s.gw, cfg.Auxiliary(), req.Content)
		if err := s.store.SetTitle(id, title); err != nil {
			s.logger.WithError(err).Warn("persisting title")
		}
	}

	engine := council.NewEngine(s.gw, cfg)
	result, runErr := engine.Run(ctx, historyFor(conv, req.Content))
	if runErr != nil && !errors.Is(runErr, council.ErrAllModelsFailed) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": runErr.Error()})
		return
	}

	if err := s.store.AppendAssistantMessage(id, result); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleMessageStream runs the council while emitting each stage as a
// server-sent event.
func (s *Server) handleMessageStream(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	conv, err := s.store.Get(id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	isFirst := len(conv.Messages) == 0

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	send := func(ev council.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.WithError(err).Error("marshaling event")
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		c.Writer.Flush()
	}

	if err := s.store.AppendUserMessage(id, req.Content); err != nil {
		send(council.Event{Type: council.EventError, Message: err.Error()})
		return
	}

	ctx := c.Request.Context()
	cfg := s.runConfig(ctx, req.Content)

	// Title generation runs alongside the council stages; the result is
	// awaited after stage 3 so it never delays the pipeline.
	var titleCh chan string
	if isFirst {
		titleCh = make(chan string, 1)
		go func() {
			titleCh <- council.GenerateTitle(ctx, s.gw, cfg.Auxiliary(), req.Content)
		}()
	}

	engine := council.NewEngine(s.gw, cfg)
	engine.OnEvent = send

	result, runErr := engine.Run(ctx, historyFor(conv, req.Content))

	if titleCh != nil {
		title := <-titleCh
		if err := s.store.SetTitle(id, title); err != nil {
			s.logger.WithError(err).Warn("persisting title")
		} else {
			send(council.Event{Type: council.EventTitleComplete, Data: gin.H{"title": title}})
		}
	}

	if err := s.store.AppendAssistantMessage(id, result); err != nil {
		send(council.Event{Type: council.EventError, Message: err.Error()})
		return
	}

	// the engine already emitted the error event on a failed run
	if runErr == nil {
		send(council.Event{Type: council.EventComplete})
	}
}

// historyFor flattens a stored conversation plus the new user query into
// the message history handed to the engine. Assistant turns contribute
// their chairman answer.
func historyFor(conv *storage.Conversation, content string) []openrouter.Message {
	history := make([]openrouter.Message, 0, len(conv.Messages)+1)
	for _, msg := range conv.Messages {
		switch msg.Role {
		case "user":
			history = append(history, openrouter.Message{Role: "user", Content: msg.Content})
		case "assistant":
			if msg.Stage3 != nil {
				history = append(history, openrouter.Message{Role: "assistant", Content: msg.Stage3.Response})
			}
		}
	}
	return append(history, openrouter.Message{Role: "user", Content: content})
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
