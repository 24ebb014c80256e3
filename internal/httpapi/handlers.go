package httpapi

import (
	"net/http"

	"github.com/CLIAIRMONITOR/memoryd/internal/retrieval"
	"github.com/CLIAIRMONITOR/memoryd/internal/service"
)

func handleListMemories(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := service.ListMemoriesRequest{ActiveOnly: true}
		if v := q.Get("scope"); v != "" {
			req.Scope = &v
		}
		if v := q.Get("agent_id"); v != "" {
			req.AgentID = &v
		}
		if v := q.Get("topic_id"); v != "" {
			req.TopicID = &v
		}
		if v := q.Get("active_only"); v == "false" {
			req.ActiveOnly = false
		}

		memories, err := svc.ListMemories(req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, memories)
	}
}

type createMemoryBody struct {
	Scope      string   `json:"scope"`
	MemoryType string   `json:"memory_type"`
	AgentID    *string  `json:"agent_id,omitempty"`
	TopicID    *string  `json:"topic_id,omitempty"`
	Content    string   `json:"content"`
	Context    *string  `json:"context,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

func handleCreateMemory(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createMemoryBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}

		m, err := svc.CreateMemory(service.CreateMemoryRequest{
			Scope: body.Scope, MemoryType: body.MemoryType, AgentID: body.AgentID,
			TopicID: body.TopicID, Content: body.Content, Context: body.Context, Tags: body.Tags,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleGetMemory(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := svc.GetMemory(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleDeleteMemory(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteMemory(r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type retrieveBody struct {
	Query             string  `json:"query"`
	AgentID           *string `json:"agent_id,omitempty"`
	TopicID           *string `json:"topic_id,omitempty"`
	MaxRecentMessages *int    `json:"max_recent_messages,omitempty"`
}

type retrieveResponse struct {
	Memories         []retrieval.RetrievedMemory `json:"memories"`
	RecentMessages   any                         `json:"recent_messages"`
	TotalTokens      uint32                      `json:"total_tokens"`
	FormattedContext string                      `json:"formatted_context"`
}

func handleRetrieve(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body retrieveBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}

		maxRecent := 10
		if body.MaxRecentMessages != nil {
			maxRecent = *body.MaxRecentMessages
		}

		ctx, err := svc.Retrieve(body.Query, body.AgentID, body.TopicID, maxRecent)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, retrieveResponse{
			Memories:         ctx.Memories,
			RecentMessages:   ctx.RecentMessages,
			TotalTokens:      ctx.TotalTokens,
			FormattedContext: ctx.FormatForPrompt(),
		})
	}
}

type appendMessageBody struct {
	AgentID string `json:"agent_id"`
	TopicID string `json:"topic_id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

func handleAppendMessage(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body appendMessageBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}

		msg, err := svc.AppendMessage(service.AppendMessageRequest{
			AgentID: body.AgentID, TopicID: body.TopicID, Role: body.Role, Content: body.Content,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func handleListMessages(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 0)

		messages, err := svc.ListMessages(r.PathValue("agent_id"), r.PathValue("topic_id"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

type countTokensBody struct {
	Text string `json:"text"`
}

func handleCountTokens(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body countTokensBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]uint32{"tokens": svc.CountTokens(body.Text)})
	}
}

func handleTokenBudget(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		budget, err := svc.TokenBudget(r.PathValue("agent_id"), r.PathValue("topic_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"used": budget.Used, "limit": budget.Limit, "remaining": budget.Remaining,
			"utilization": budget.Utilization, "status": budget.Status,
		})
	}
}

func handleListAgents(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agents, err := svc.ListAgents()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, agents)
	}
}

func handleListTopics(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics, err := svc.ListTopics(r.PathValue("agent_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, topics)
	}
}
