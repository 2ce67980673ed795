package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription"
)

const (
	DefaultModel      = "gpt-5-mini"
	DefaultMediaModel = "whisper-1"

	defaultMaxOutputTokens int64 = 16000
)

// Client answers transcription.Request values with the OpenAI Responses API. Media payloads go
// through the audio transcription endpoint first; the timed text it returns is handed to the
// Responses model together with the request's instructions.
type Client struct {
	client     *openai.Client
	model      string
	mediaModel string
}

func NewClient(apiKey, model, mediaModel string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	if mediaModel == "" {
		mediaModel = DefaultMediaModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	c := openai.NewClient(opts...)
	return &Client{client: &c, model: model, mediaModel: mediaModel}
}

func (c *Client) Generate(ctx context.Context, req transcription.Request) (string, error) {
	if c.client == nil {
		return "", errors.New("provider.Client: client is nil")
	}

	input := req.Prompt
	if req.Media != nil {
		heard, err := c.transcribeAudio(ctx, *req.Media)
		if err != nil {
			return "", err
		}
		input = strings.TrimSpace(req.Prompt + "\n\nTIMED TRANSCRIPT:\n" + heard)
	}

	params, err := buildParams(c.model, req, input)
	if err != nil {
		return "", err
	}
	resp, err := CallWithRetry(ctx, c.client, params)
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}

func buildParams(model string, req transcription.Request, input string) (responses.ResponseNewParams, error) {
	maxOut := req.MaxOutputTokens
	if maxOut <= 0 {
		maxOut = defaultMaxOutputTokens
	}

	items := make([]responses.ResponseInputItemUnionParam, 0, len(req.History)+1)
	for _, m := range req.History {
		role := responses.EasyInputMessageRoleUser
		if m.Role == transcription.RoleModel {
			role = responses.EasyInputMessageRoleAssistant
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(m.Text, role))
	}
	items = append(items, responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser))

	params := responses.ResponseNewParams{
		Model:           model,
		MaxOutputTokens: openai.Int(maxOut),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.Search {
		params.Tools = []responses.ToolUnionParam{{
			OfWebSearchPreview: &responses.WebSearchToolParam{
				Type: responses.WebSearchToolTypeWebSearchPreview,
			},
		}}
	}
	if req.Format != nil {
		schema, err := SchemaFor(req.Format.Sample)
		if err != nil {
			return responses.ResponseNewParams{}, fmt.Errorf("schema %s: %w", req.Format.Name, err)
		}
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        req.Format.Name,
					Schema:      schema,
					Strict:      openai.Bool(true),
					Description: openai.String(req.Format.Description),
					Type:        "json_schema",
				},
			},
		}
	}
	return params, nil
}

type verboseTranscription struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (c *Client) transcribeAudio(ctx context.Context, p transcription.Payload) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:                   openai.File(bytes.NewReader(p.Data), p.Filename, p.MIMEType),
		Model:                  openai.AudioModel(c.mediaModel),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}
	resp, err := callAudioWithRetry(ctx, c.client, params)
	if err != nil {
		return "", fmt.Errorf("audio transcription: %w", err)
	}

	var out verboseTranscription
	if raw := resp.RawJSON(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return "", fmt.Errorf("audio transcription: %w: %v", transcription.ErrMalformedResponse, err)
		}
	} else {
		out.Text = resp.Text
	}
	return formatTimedText(out), nil
}

// formatTimedText renders one "[start-end] text" line per segment, or the bare text when the
// endpoint returned no segments.
func formatTimedText(v verboseTranscription) string {
	if len(v.Segments) == 0 {
		return strings.TrimSpace(v.Text)
	}
	var b strings.Builder
	for _, s := range v.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%.2f-%.2f] %s\n", s.Start, s.End, text)
	}
	return strings.TrimSpace(b.String())
}

var (
	rateLimitWaitTimes   = []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes = []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}
)

const maxRetries = 3

func CallWithRetry(ctx context.Context, client *openai.Client, params responses.ResponseNewParams) (*responses.Response, error) {
	return withRetry(ctx, func() (*responses.Response, error) {
		return client.Responses.New(ctx, params)
	})
}

func callAudioWithRetry(ctx context.Context, client *openai.Client, params openai.AudioTranscriptionNewParams) (*openai.Transcription, error) {
	return withRetry(ctx, func() (*openai.Transcription, error) {
		return client.Audio.Transcriptions.New(ctx, params)
	})
}

func withRetry[T any](ctx context.Context, call func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		if attempt == maxRetries-1 {
			return zero, err
		}
		var wait time.Duration
		switch {
		case isRateLimitError(err):
			wait = rateLimitWaitTimes[attempt]
		case isServerError(err):
			wait = serverErrorWaitTimes[attempt]
		default:
			return zero, err
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("failed after %d attempts due to OpenAI API issues", maxRetries)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

// SchemaFor reflects a strict JSON schema from a sample value of the response struct.
func SchemaFor(sample any) (map[string]interface{}, error) {
	if sample == nil {
		return nil, errors.New("nil schema sample")
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schemaObj, err := schemaToMap(reflector.Reflect(sample))
	if err != nil {
		return nil, err
	}
	ensureOpenAICompliance(schemaObj)
	return schemaObj, nil
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// ensureOpenAICompliance makes every object strict: no additional properties, every property required.
func ensureOpenAICompliance(schema map[string]interface{}) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false

		if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
			var requiredFields []string
			for propName := range properties {
				requiredFields = append(requiredFields, propName)
			}
			if len(requiredFields) > 0 {
				schema[requiredKey] = requiredFields
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				ensureOpenAICompliance(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		ensureOpenAICompliance(items)
	}
}
