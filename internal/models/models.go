// Package models holds the domain types shared across the submission API,
// dispatcher workers, enrichment engine and nightly scheduler.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Location represents a geographic hint attached to a prompt or job batch.
type Location struct {
	Country string  `json:"country"`
	City    *string `json:"city,omitempty"`
	Region  *string `json:"region,omitempty"`
}

// SchedulerFrequency is a project's nightly re-run cadence.
type SchedulerFrequency string

const (
	FrequencyNone    SchedulerFrequency = ""
	FrequencyDaily   SchedulerFrequency = "daily"
	FrequencyWeekly  SchedulerFrequency = "weekly"
	FrequencyMonthly SchedulerFrequency = "monthly"
)

// Project is owned by a user and optionally carries a nightly cadence.
type Project struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	UserID             uuid.UUID          `db:"user_id" json:"user_id"`
	Name               string             `db:"name" json:"name"`
	SchedulerFrequency SchedulerFrequency `db:"scheduler_frequency" json:"scheduler_frequency"`
	LastNightlyRunAt   *time.Time         `db:"last_nightly_run_at" json:"last_nightly_run_at,omitempty"`
}

// Prompt is a tracked question, owned by a Project, shared (weak reference)
// by many TrackingResults across submissions.
type Prompt struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ProjectID      uuid.UUID `db:"project_id" json:"project_id"`
	Text           string    `db:"text" json:"text"`
	Enabled        bool      `db:"enabled" json:"enabled"`
	BrandMentions  []string  `db:"-" json:"brand_mentions"`
	DomainMentions []string  `db:"-" json:"domain_mentions"`
	Geo            *Location `db:"-" json:"geo,omitempty"`
}

// Tag is a project-scoped label (case-insensitive unique within a project).
type Tag struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
}

// JobBatchStatus is the terminal/non-terminal state of a JobBatch.
type JobBatchStatus string

const (
	JobBatchPending                JobBatchStatus = "pending"
	JobBatchProcessing             JobBatchStatus = "processing"
	JobBatchCompleted              JobBatchStatus = "completed"
	JobBatchCompletedWithErrors    JobBatchStatus = "completed_with_errors"
	JobBatchFailed                 JobBatchStatus = "failed"
)

// IsTerminal reports whether a status is one of the batch's terminal states.
func (s JobBatchStatus) IsTerminal() bool {
	switch s {
	case JobBatchCompleted, JobBatchCompletedWithErrors, JobBatchFailed:
		return true
	default:
		return false
	}
}

// JobBatch is the aggregate tracking a single API submission and its
// per-shard completion counters. Nightly re-runs do not create one.
type JobBatch struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	UserID          uuid.UUID      `db:"user_id" json:"user_id"`
	ProjectID       uuid.UUID      `db:"project_id" json:"project_id"`
	Email           *string        `db:"email" json:"email,omitempty"`
	TotalPrompts    int            `db:"total_prompts" json:"total_prompts"`
	TotalBatches    int            `db:"total_batches" json:"total_batches"`
	CompletedBatches int           `db:"completed_batches" json:"completed_batches"`
	FailedBatches   int            `db:"failed_batches" json:"failed_batches"`
	Status          JobBatchStatus `db:"status" json:"status"`
	OpenAIKey       string         `db:"-" json:"-"`
	OpenAIModel     string         `db:"openai_model" json:"openai_model"`
	WebSearch       bool           `db:"web_search" json:"web_search"`
	Geo             *Location      `db:"-" json:"geo,omitempty"`
	BrandMentions   []string       `db:"-" json:"brand_mentions,omitempty"`
	DomainMentions  []string       `db:"-" json:"domain_mentions,omitempty"`
	Tags            []string       `db:"-" json:"tags,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage    *string        `db:"error_message" json:"error_message,omitempty"`
}

// RemainingCapacity returns how many shard outcomes are still outstanding.
func (b *JobBatch) RemainingCapacity() int {
	return b.TotalBatches - b.CompletedBatches - b.FailedBatches
}

// TrackingResultStatus is the per-prompt lifecycle state.
type TrackingResultStatus string

const (
	TrackingPending    TrackingResultStatus = "pending"
	TrackingProcessing TrackingResultStatus = "processing"
	TrackingFulfilled  TrackingResultStatus = "fulfilled"
	TrackingFailed     TrackingResultStatus = "failed"
)

// Source identifies which provider (and mode) produced a TrackingResult.
type Source string

const (
	SourceProviderA         Source = "providerA"
	SourceProviderB         Source = "providerB"
	SourceProviderANightly  Source = "providerA-nightly"
	SourceProviderBNightly  Source = "providerB-nightly"
)

// IntentClassification is the primary search-intent bucket for a response.
type IntentClassification string

const (
	IntentInformational IntentClassification = "informational"
	IntentCommercial    IntentClassification = "commercial"
	IntentTransactional IntentClassification = "transactional"
	IntentLocal         IntentClassification = "local"
	IntentNavigational  IntentClassification = "navigational"
)

// Citation is a single normalized source reference attached to a response.
// PublishedAt is best-effort: many provider citations carry no date at
// all, in which case it is nil and the citation simply doesn't
// contribute to the recency scoring in §4.5 steps 5-6.
type Citation struct {
	Title       string     `json:"title"`
	Domain      string     `json:"domain"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// MonthlyTrend is one month's aggregated AI-search-volume sample.
type MonthlyTrend struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Volume int `json:"volume"`
}

// TrackingResult is one prompt's outcome within a single submission (or
// nightly run). JobBatch exclusively owns it; Prompt is only weakly
// referenced.
type TrackingResult struct {
	ID                 uuid.UUID             `db:"id" json:"id"`
	PromptID           uuid.UUID             `db:"prompt_id" json:"prompt_id"`
	PromptText         string                `db:"prompt_text" json:"prompt_text"`
	ProjectID          uuid.UUID             `db:"project_id" json:"project_id"`
	UserID             uuid.UUID             `db:"user_id" json:"user_id"`
	JobBatchID         *uuid.UUID            `db:"job_batch_id" json:"job_batch_id,omitempty"`
	BatchNumber        int                   `db:"batch_number" json:"batch_number"`
	ExternalTaskID     *string               `db:"external_task_id" json:"external_task_id,omitempty"`
	Status             TrackingResultStatus  `db:"status" json:"status"`
	IsPresent          *bool                 `db:"is_present" json:"is_present,omitempty"`
	IsDomainPresent    *bool                 `db:"is_domain_present" json:"is_domain_present,omitempty"`
	Sentiment          *int                  `db:"sentiment" json:"sentiment,omitempty"`
	Salience           *int                  `db:"salience" json:"salience,omitempty"`
	Response           *string               `db:"response" json:"response,omitempty"`
	Citations          []Citation            `db:"-" json:"citations,omitempty"`
	MentionCount       *int                  `db:"mention_count" json:"mention_count,omitempty"`
	DomainMentionCount *int                  `db:"domain_mention_count" json:"domain_mention_count,omitempty"`
	WebSearch          bool                  `db:"web_search" json:"web_search"`
	LCP                *int                  `db:"lcp" json:"lcp,omitempty"`
	Actionability      *int                  `db:"actionability" json:"actionability,omitempty"`
	IntentClassification *IntentClassification `db:"intent_classification" json:"intent_classification,omitempty"`
	SERP               map[string]int        `db:"-" json:"serp,omitempty"`
	AISearchVolume     *int                  `db:"ai_search_volume" json:"ai_search_volume,omitempty"`
	AIMonthlyTrends    []MonthlyTrend        `db:"-" json:"ai_monthly_trends,omitempty"`
	AIVolumeFetchedAt  *time.Time            `db:"ai_volume_fetched_at" json:"ai_volume_fetched_at,omitempty"`
	AIVolumeLocationCode *string             `db:"ai_volume_location_code" json:"ai_volume_location_code,omitempty"`
	Timestamp          time.Time             `db:"timestamp" json:"timestamp"`
	Source             Source                `db:"source" json:"source"`
	ErrorReason        *string               `db:"-" json:"error_reason,omitempty"`
}

// NormalizedResponse is the provider-agnostic envelope the dispatcher
// workers hand to the enrichment engine. It decouples feature detection
// from any particular scraping provider's wire shape (see REDESIGN FLAGS).
type NormalizedResponse struct {
	AnswerText    string
	RawMarkdown   string
	Citations     []Citation
	HasProducts   bool
	ProductCount  int
	HasImages     bool
	ImageCount    int
	HasLocalBiz   bool
	LocalBizCount int
	AttachedLinks int
	HasSources    bool
	WebSearch     bool
}

// VolumeData is the result of a single keyword's volume lookup.
type VolumeData struct {
	CurrentVolume int            `json:"current_volume"`
	AverageVolume float64        `json:"average_volume"`
	PeakVolume    int            `json:"peak_volume"`
	MonthlyTrends []MonthlyTrend `json:"monthly_trends"`
}
