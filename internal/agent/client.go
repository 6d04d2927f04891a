package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	openai "github.com/sashabaranov/go-openai"

	"redirect-agent-backend/internal/config"
	"redirect-agent-backend/internal/logging"
)

// Completer sends a prompt to a chat model and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// ErrNoChoices is returned when the model answers without any choice.
var ErrNoChoices = errors.New("no choices")

const (
	retryWaitMin = 200 * time.Millisecond
	retryWaitMax = 2 * time.Second
)

// NewHTTPClient returns an *http.Client that retries transport failures and
// 5xx/429 responses up to retries times.
func NewHTTPClient(retries int, timeout time.Duration, log *logging.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.HTTPClient.Timeout = timeout
	if log != nil {
		zl := log.Zerolog()
		rc.Logger = &zl
	} else {
		rc.Logger = nil
	}
	return rc.StandardClient()
}

// NewOpenAIClient builds an Azure OpenAI client when an endpoint is
// configured and a plain OpenAI client otherwise.
func NewOpenAIClient(cfg config.ModelConfig, httpClient *http.Client) *openai.Client {
	var oc openai.ClientConfig
	if cfg.Endpoint != "" {
		oc = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			oc.APIVersion = cfg.APIVersion
		}
	} else {
		oc = openai.DefaultConfig(cfg.APIKey)
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(oc)
}

// OpenAICompleter calls the chat completions API with fixed model settings.
type OpenAICompleter struct {
	client *openai.Client
	cfg    config.ModelConfig
	log    *logging.Logger
}

func NewOpenAICompleter(client *openai.Client, cfg config.ModelConfig, log *logging.Logger) *OpenAICompleter {
	if log == nil {
		log = logging.Nop()
	}
	return &OpenAICompleter{client: client, cfg: cfg, log: log}
}

func (c *OpenAICompleter) request(messages []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	temperature := c.cfg.Temperature
	if temperature == 0 {
		// the client drops a zero temperature (omitempty) and the API would default to 1
		temperature = math.SmallestNonzeroFloat32
	}
	seed := c.cfg.Seed
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Name,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: temperature,
		TopP:        c.cfg.TopP,
		Stream:      c.cfg.Stream,
		Seed:        &seed,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	req := c.request(messages)
	if req.Stream {
		return c.completeStream(ctx, req)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.log.Error().Err(err).Str("model", req.Model).Msg("chat completion failed")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	c.log.Info().Str("model", req.Model).Int("total_tokens", resp.Usage.TotalTokens).Msg("received chat completion")
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAICompleter) completeStream(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		c.log.Error().Err(err).Str("model", req.Model).Msg("chat stream init failed")
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stream recv: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		b.WriteString(chunk.Choices[0].Delta.Content)
	}
	c.log.Info().Str("model", req.Model).Int("chars", b.Len()).Msg("received streamed chat completion")
	return b.String(), nil
}
