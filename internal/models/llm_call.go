package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LLMOperation names the prompt a gateway call served.
type LLMOperation string

const (
	OpTaskDetail         LLMOperation = "task_detail"
	OpTaskTemplates      LLMOperation = "task_templates"
	OpRemedialTask       LLMOperation = "remedial_task"
	OpInterviewQuestions LLMOperation = "interview_questions"
	OpInterviewAnalysis  LLMOperation = "interview_analysis"
	OpStandardAnswer     LLMOperation = "standard_answer"
	OpFacialEvaluation   LLMOperation = "facial_evaluation"
	OpToneEvaluation     LLMOperation = "tone_evaluation"
	OpChatReply          LLMOperation = "chat_reply"
	OpChatGreeting       LLMOperation = "chat_greeting"
	OpResumeParse        LLMOperation = "resume_parse"
	OpResumeQuestions    LLMOperation = "resume_questions"
	OpRAGAnswer          LLMOperation = "rag_answer"
	OpDirectAnswer       LLMOperation = "direct_answer"
	OpStyleAnalysis      LLMOperation = "style_analysis"
)

const (
	LLMCallOK    = "ok"
	LLMCallError = "error"
)

// LLMCall is one audited gateway round trip. Documents expire via a TTL index.
type LLMCall struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Operation    LLMOperation       `bson:"operation" json:"operation"`
	Provider     string             `bson:"provider" json:"provider"`
	Model        string             `bson:"model" json:"model"`
	SystemPrompt string             `bson:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	UserPrompt   string             `bson:"user_prompt" json:"user_prompt"`
	Answer       string             `bson:"answer,omitempty" json:"answer,omitempty"`
	Status       string             `bson:"status" json:"status"`
	Error        string             `bson:"error,omitempty" json:"error,omitempty"`
	LatencyMS    int64              `bson:"latency_ms" json:"latency_ms"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt    time.Time          `bson:"expires_at" json:"expires_at"`
}
