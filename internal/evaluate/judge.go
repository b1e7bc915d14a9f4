package evaluate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vityaded/Kahoot-clone/internal/domain"
)

// JudgeVerdict is a semantic adjudication with the provider's self-reported
// confidence in [0,1].
type JudgeVerdict struct {
	Verdict    domain.Verdict
	Confidence float64
}

// Judge adjudicates answers the rule ladder cannot. Implementations return
// domain.ErrJudgeUnavailable (possibly wrapped) when they cannot produce a
// usable verdict, letting a chain move on to the next provider.
type Judge interface {
	Name() string
	Judge(ctx context.Context, q domain.Question, submitted string) (JudgeVerdict, error)
}

// Chain tries providers in order and answers with the first usable verdict.
// The engine never learns which concrete provider replied.
type Chain struct {
	providers []Judge
}

func NewChain(providers ...Judge) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Judge(ctx context.Context, q domain.Question, submitted string) (JudgeVerdict, error) {
	for _, p := range c.providers {
		jv, err := p.Judge(ctx, q, submitted)
		if err == nil {
			return jv, nil
		}
	}
	return JudgeVerdict{}, domain.ErrJudgeUnavailable
}

// CachedJudge memoizes verdicts by (question, normalized submission).
// Entries are immutable once computed and shared across sessions.
type CachedJudge struct {
	inner Judge

	mu    sync.RWMutex
	cache map[string]JudgeVerdict
}

func NewCachedJudge(inner Judge) *CachedJudge {
	return &CachedJudge{inner: inner, cache: map[string]JudgeVerdict{}}
}

func (c *CachedJudge) Name() string { return c.inner.Name() }

func (c *CachedJudge) Judge(ctx context.Context, q domain.Question, submitted string) (JudgeVerdict, error) {
	key := Normalize(q.Answer) + "\x00" + Normalize(submitted)

	c.mu.RLock()
	if jv, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return jv, nil
	}
	c.mu.RUnlock()

	jv, err := c.inner.Judge(ctx, q, submitted)
	if err != nil {
		return JudgeVerdict{}, err
	}

	c.mu.Lock()
	c.cache[key] = jv
	c.mu.Unlock()
	return jv, nil
}

// ChatJudge adjudicates through an OpenAI-compatible chat-completions
// endpoint. The model is asked to answer with a single JSON object.
type ChatJudge struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

func NewChatJudge(endpoint, model, apiKey string, timeout time.Duration) *ChatJudge {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ChatJudge{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (j *ChatJudge) Name() string { return j.model }

const judgePrompt = `You grade quiz answers. Question: %q. Expected answer: %q. Submitted answer: %q. ` +
	`Reply with only a JSON object {"verdict":"correct"|"partial"|"wrong","confidence":0.0-1.0}.`

func (j *ChatJudge) Judge(ctx context.Context, q domain.Question, submitted string) (JudgeVerdict, error) {
	body, err := json.Marshal(map[string]any{
		"model": j.model,
		"messages": []map[string]string{
			{"role": "user", "content": fmt.Sprintf(judgePrompt, q.Prompt, q.Answer, submitted)},
		},
		"temperature": 0,
	})
	if err != nil {
		return JudgeVerdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(body))
	if err != nil {
		return JudgeVerdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if j.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.apiKey)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return JudgeVerdict{}, fmt.Errorf("%w: %v", domain.ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return JudgeVerdict{}, fmt.Errorf("%w: status %d", domain.ErrJudgeUnavailable, resp.StatusCode)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return JudgeVerdict{}, fmt.Errorf("%w: decode: %v", domain.ErrJudgeUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return JudgeVerdict{}, fmt.Errorf("%w: empty completion", domain.ErrJudgeUnavailable)
	}

	return parseJudgeReply(completion.Choices[0].Message.Content)
}

func parseJudgeReply(content string) (JudgeVerdict, error) {
	// Models occasionally wrap the JSON in prose or fences; cut to the
	// outermost object before decoding.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return JudgeVerdict{}, fmt.Errorf("%w: no JSON in reply", domain.ErrJudgeUnavailable)
	}

	var reply struct {
		Verdict    string  `json:"verdict"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return JudgeVerdict{}, fmt.Errorf("%w: malformed reply: %v", domain.ErrJudgeUnavailable, err)
	}

	var verdict domain.Verdict
	switch strings.ToLower(reply.Verdict) {
	case "correct":
		verdict = domain.VerdictCorrect
	case "partial":
		verdict = domain.VerdictPartial
	case "wrong":
		verdict = domain.VerdictWrong
	default:
		return JudgeVerdict{}, fmt.Errorf("%w: unknown verdict %q", domain.ErrJudgeUnavailable, reply.Verdict)
	}
	if reply.Confidence < 0 || reply.Confidence > 1 {
		return JudgeVerdict{}, fmt.Errorf("%w: confidence out of range", domain.ErrJudgeUnavailable)
	}
	return JudgeVerdict{Verdict: verdict, Confidence: reply.Confidence}, nil
}
