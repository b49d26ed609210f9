package llm

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"github.com/archstudio/intake/internal/utils"
)

const defaultModel = "gemini-1.5-pro"

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
	system    string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName, systemPrompt string, opts ...option.ClientOption) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location, opts...)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, "VertexGemini.New", "failed to create vertex client", err)
	}
	if modelName == "" {
		modelName = defaultModel
	}
	return &VertexGemini{client: c, modelName: modelName, system: systemPrompt}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Generate(ctx context.Context, prompt string, schema *Schema) (string, error) {
	const op = "VertexGemini.Generate"

	m := v.client.GenerativeModel(v.modelName)
	m.SetTemperature(0.2)
	if v.system != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(v.system)}}
	}
	if schema != nil {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = toGenaiSchema(schema)
	}

	resp, err := m.GenerateContent(ctx, vertexgenai.Text(prompt))
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "generate content failed", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
		// first candidate only
		break
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", utils.E(utils.CodeUnavailable, op, "empty model response", nil)
	}
	return b.String(), nil
}

func toGenaiSchema(s *Schema) *vertexgenai.Schema {
	if s == nil {
		return nil
	}
	out := &vertexgenai.Schema{
		Type:        genaiType(s.Type),
		Description: s.Description,
		Enum:        s.Enum,
		Nullable:    s.Nullable,
		Items:       toGenaiSchema(s.Items),
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*vertexgenai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func genaiType(t SchemaType) vertexgenai.Type {
	switch t {
	case TypeString:
		return vertexgenai.TypeString
	case TypeNumber:
		return vertexgenai.TypeNumber
	case TypeInteger:
		return vertexgenai.TypeInteger
	case TypeBoolean:
		return vertexgenai.TypeBoolean
	case TypeArray:
		return vertexgenai.TypeArray
	case TypeObject:
		return vertexgenai.TypeObject
	default:
		return vertexgenai.TypeUnspecified
	}
}
