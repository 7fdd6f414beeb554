package propose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/planmirror/internal/align"
	"github.com/dgallion1/planmirror/internal/rules"
)

const systemPrompt = "You are an expert in document parsing. You are given the same content " +
	"in multiple structures and your job is to resolve them into a ProseMirror node. " +
	"You generate rules to convert unified blocks into output nodes."

// LLMProposer asks a chat-completions API to propose a conversion rule
// for an unmatched block. The returned rule's construct step is bound
// from the standard builder for its output node type; no generated code
// is executed. An approval hook reviews every proposal before it is
// accepted.
type LLMProposer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	registry   *rules.Registry
	approve    ApproveFunc
	log        *slog.Logger
}

func NewLLMProposer(apiKey, model, baseURL string, registry *rules.Registry, approve ApproveFunc, log *slog.Logger) *LLMProposer {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &LLMProposer{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		registry: registry,
		approve:  approve,
		log:      log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ruleProposal is the JSON shape the model is asked to return.
type ruleProposal struct {
	ID             string            `json:"id"`
	Description    string            `json:"description"`
	Conditions     []rules.Condition `json:"conditions"`
	OutputNodeType string            `json:"output_node_type"`
}

// ProposeRule generates, reviews and materializes a new conversion rule
// for the block.
func (p *LLMProposer) ProposeRule(ctx context.Context, block *align.UnifiedBlock) (*Proposal, error) {
	blockJSON, err := json.MarshalIndent(block, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal block: %w", err)
	}

	prompt := fmt.Sprintf(`Here is a block of structured content:

Block:
%s

Here are existing rules for reference:
%s

Propose a new conversion rule as JSON with fields: id (slug), description,
conditions (list of {source: semantic|style, field, operator, value}),
output_node_type (one of: heading, paragraph, table, image).
Return only the JSON object.`, blockJSON, p.ruleSummaries())

	content, err := p.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var rp ruleProposal
	if err := json.Unmarshal([]byte(stripCodeBlock(content)), &rp); err != nil {
		return nil, fmt.Errorf("parse rule proposal: %w (raw: %s)", err, truncate(content, 200))
	}
	if rp.ID == "" {
		return nil, fmt.Errorf("rule proposal has no id")
	}

	construct, err := rules.BuilderFor(rp.OutputNodeType)
	if err != nil {
		return nil, fmt.Errorf("rule proposal %q: %w", rp.ID, err)
	}

	rule := &rules.Rule{
		ID:             rp.ID,
		Description:    rp.Description,
		Conditions:     rp.Conditions,
		OutputNodeType: rp.OutputNodeType,
		Construct:      construct,
	}

	node, err := construct(block.SemanticItem, block.StyleItems)
	if err != nil {
		return nil, fmt.Errorf("construct proposed node: %w", err)
	}

	proposal := &Proposal{RuleID: rule.ID, Node: node, Rule: rule}

	if p.approve != nil && !p.approve(proposal) {
		p.log.Info("rule proposal rejected", "rule_id", rule.ID, "block_id", block.ID)
		return nil, fmt.Errorf("rule %q for block %s: %w", rule.ID, block.ID, ErrProposalRejected)
	}

	p.log.Info("rule proposal accepted", "rule_id", rule.ID, "output_node_type", rp.OutputNodeType)
	return proposal, nil
}

func (p *LLMProposer) ruleSummaries() string {
	type summary struct {
		ID             string `json:"id"`
		Description    string `json:"description"`
		OutputNodeType string `json:"output_node_type"`
	}
	var all []summary
	for _, r := range p.registry.All() {
		all = append(all, summary{r.ID, r.Description, r.OutputNodeType})
	}
	out, _ := json.MarshalIndent(all, "", "  ")
	return string(out)
}

func (p *LLMProposer) chat(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       p.model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("proposal api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("proposal api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("proposal api error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from proposal api")
	}

	return apiResp.Choices[0].Message.Content, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases resources.
func (p *LLMProposer) Close() {
	p.httpClient.CloseIdleConnections()
}
