package connector

import (
	"context"
	"log"

	"github.com/mohammad-safakhou/flowpilot/internal/workflow"
)

// Email is a fetched message record.
type Email struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var sampleInbox = []Email{
	{From: "alice@example.com", Subject: "Project update", Body: "The Q3 roadmap draft is ready for review."},
	{From: "bob@example.com", Subject: "Meeting notes", Body: "Standup moved to 10am tomorrow, please update your calendars."},
	{From: "carol@example.com", Subject: "Invoice", Body: "Invoice #4521 has been paid in full."},
}

// EmailFetcher simulates reading an inbox. It ignores the execution context.
type EmailFetcher struct {
	logger *log.Logger
}

func NewEmailFetcher() *EmailFetcher {
	return &EmailFetcher{logger: log.New(log.Writer(), "[GMAIL] ", log.LstdFlags)}
}

func (f *EmailFetcher) Name() string { return ToolEmailFetch }

func (f *EmailFetcher) Run(ctx context.Context, execCtx workflow.Context) (interface{}, error) {
	out := make([]Email, len(sampleInbox))
	copy(out, sampleInbox)
	f.logger.Printf("fetched %d emails", len(out))
	return out, nil
}
