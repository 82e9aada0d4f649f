package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ziadkadry99/medisur/internal/llm"
)

// LLMOracle implements Oracle with JSON-mode completions.
type LLMOracle struct {
	provider llm.Provider
	model    string
}

// NewLLMOracle creates an oracle backed by provider.
func NewLLMOracle(provider llm.Provider, model string) *LLMOracle {
	return &LLMOracle{provider: provider, model: model}
}

const assistantPrompt = `You are a medical assistant for Latin American countries helping to triage patients before they are referred to a health facility.
Always answer in the same language the patient uses. You MUST respond with a single valid JSON object and nothing else.`

const extractPrompt = `Extract the patient's clinical information from the conversation below.

Respond with JSON matching this schema:
{
  "symptoms": ["symptom", "..."],
  "duration": "how long the symptoms have lasted, or empty",
  "severity": "mild|moderate|severe, or empty",
  "medical_history": "relevant history, or empty",
  "age": number or null,
  "gender": "gender, or empty"
}

Conversation:
%s`

const questionsPrompt = `Given this structured patient record, decide whether important information is missing to triage the patient.
If it is, ask at most %d short clarifying question(s). If nothing important is missing, return an empty list.

Respond with JSON: {"questions": ["question", "..."]}

Record:
%s`

const triagePrompt = `Triage the patient described by this structured record.

Respond with JSON:
{
  "urgency": "Low|Moderate|High|Emergency",
  "specialty": "exactly one of: %s",
  "contagious": true or false (false when unsure)
}

Record:
%s`

const suggestPrompt = `For the patient described by this structured record, list possible diagnoses and general treatment guidelines a clinician could review.

Respond with JSON: {"possible_diagnoses": ["..."], "treatment_guidelines": ["..."]}

Record:
%s`

func (o *LLMOracle) complete(ctx context.Context, prompt string, out any) error {
	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Model: o.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: assistantPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return fmt.Errorf("LLM completion: %w", err)
	}
	if err := json.Unmarshal([]byte(jsonObject(resp.Content)), out); err != nil {
		return fmt.Errorf("parsing LLM response: %w", err)
	}
	return nil
}

// jsonObject trims anything around the outermost braces, such as markdown
// code fences.
func jsonObject(content string) string {
	if idx := strings.Index(content, "{"); idx >= 0 {
		content = content[idx:]
	}
	if idx := strings.LastIndex(content, "}"); idx >= 0 {
		content = content[:idx+1]
	}
	return content
}

type rawRecord struct {
	Symptoms       json.RawMessage `json:"symptoms"`
	Duration       string          `json:"duration"`
	Severity       string          `json:"severity"`
	MedicalHistory string          `json:"medical_history"`
	Age            any             `json:"age"`
	Gender         string          `json:"gender"`
}

// Extract builds the structured record from the rendered transcript.
func (o *LLMOracle) Extract(ctx context.Context, transcriptText string) (*Record, error) {
	var raw rawRecord
	if err := o.complete(ctx, fmt.Sprintf(extractPrompt, transcriptText), &raw); err != nil {
		return nil, err
	}

	rec := &Record{
		Duration:       raw.Duration,
		Severity:       raw.Severity,
		MedicalHistory: raw.MedicalHistory,
		Gender:         raw.Gender,
		Age:            parseAge(raw.Age),
	}
	// Models return either a list or a single comma-separated string.
	var list []string
	if err := json.Unmarshal(raw.Symptoms, &list); err == nil {
		rec.Symptoms = list
	} else {
		var s string
		if err := json.Unmarshal(raw.Symptoms, &s); err == nil && s != "" {
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					rec.Symptoms = append(rec.Symptoms, part)
				}
			}
		}
	}
	return rec, nil
}

func parseAge(v any) *int {
	switch a := v.(type) {
	case float64:
		n := int(a)
		return &n
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(a)); err == nil {
			return &n
		}
	}
	return nil
}

// Questions asks for up to limit clarifying questions.
func (o *LLMOracle) Questions(ctx context.Context, rec *Record, limit int) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	if err := o.complete(ctx, fmt.Sprintf(questionsPrompt, limit, recordJSON(rec)), &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// Triage returns urgency, specialty and the contagion flag. Values outside
// the closed sets are rejected.
func (o *LLMOracle) Triage(ctx context.Context, rec *Record) (*Assessment, error) {
	var out struct {
		Urgency    string `json:"urgency"`
		Specialty  string `json:"specialty"`
		Contagious any    `json:"contagious"`
	}
	names := make([]string, len(Specialties))
	for i, s := range Specialties {
		names[i] = string(s)
	}
	if err := o.complete(ctx, fmt.Sprintf(triagePrompt, strings.Join(names, ", "), recordJSON(rec)), &out); err != nil {
		return nil, err
	}

	urgency, err := ParseUrgency(out.Urgency)
	if err != nil {
		return nil, err
	}
	specialty, err := ParseSpecialty(out.Specialty)
	if err != nil {
		return nil, err
	}
	contagious, _ := out.Contagious.(bool)
	return &Assessment{Urgency: urgency, Specialty: specialty, Contagious: contagious}, nil
}

// Suggest returns informational diagnoses and guidelines.
func (o *LLMOracle) Suggest(ctx context.Context, rec *Record) (*Suggestions, error) {
	var out Suggestions
	if err := o.complete(ctx, fmt.Sprintf(suggestPrompt, recordJSON(rec)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func recordJSON(rec *Record) string {
	b, _ := json.MarshalIndent(rec, "", "  ")
	return string(b)
}
