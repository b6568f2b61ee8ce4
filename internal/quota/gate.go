package quota

import (
    "context"
    "errors"
    "time"
)

// ErrQuotaExceeded is returned when a plan ceiling blocks the requested
// action.  It is a user-facing "upgrade required" condition, distinct from
// authorization failures and from transient infrastructure errors.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ConversationCounter reports a user's standing conversation count.  The
// repository layer provides the production implementation.
type ConversationCounter interface {
    CountConversations(ctx context.Context, userID string) (int, error)
}

// Gate evaluates plan limits against accumulated usage before an action is
// allowed to execute.  All checks happen before the action, with one
// deliberate exception: a chat call's real token cost is only known after
// the provider responds, so the call that tips token usage over the limit
// completes and is recorded, and the next call is rejected.
type Gate struct {
    ledger        Ledger
    conversations ConversationCounter

    now func() time.Time
}

// NewGate builds a Gate over the given ledger and conversation counter.
func NewGate(ledger Ledger, conversations ConversationCounter) *Gate {
    return &Gate{ledger: ledger, conversations: conversations, now: time.Now}
}

// Ledger exposes the underlying usage ledger for callers that record usage
// after a successful action.
func (g *Gate) Ledger() Ledger { return g.ledger }

// Today returns the current day used for ledger keys.
func (g *Gate) Today() time.Time { return g.now().UTC() }

// CheckConversationCreate rejects when the user already holds the plan's
// maximum number of conversations.
func (g *Gate) CheckConversationCreate(ctx context.Context, userID, plan string) error {
    limits := LimitsFor(plan)
    count, err := g.conversations.CountConversations(ctx, userID)
    if err != nil {
        return err
    }
    if count >= limits.MaxConversations {
        return ErrQuotaExceeded
    }
    return nil
}

// CheckMessageCreate rejects when today's message count has reached the
// daily ceiling, when recorded token usage (if any) has reached the token
// ceiling, or, for file-type messages, when today's uploads have reached
// the upload ceiling.
func (g *Gate) CheckMessageCreate(ctx context.Context, userID, plan string, isFile bool) error {
    limits := LimitsFor(plan)
    usage, err := g.ledger.DailyUsage(ctx, userID, g.Today())
    if err != nil {
        return err
    }
    if usage.MessageCount >= limits.DailyMessages {
        return ErrQuotaExceeded
    }
    if usage.TokenCount != nil && *usage.TokenCount >= limits.DailyTokens {
        return ErrQuotaExceeded
    }
    if isFile {
        uploads := 0
        if usage.FileUploads != nil {
            uploads = *usage.FileUploads
        }
        if uploads >= limits.MaxFileUploads {
            return ErrQuotaExceeded
        }
    }
    return nil
}

// CheckChat applies the message and token ceilings before an LLM call.
// Token usage recorded by a previous call that overshot the limit causes
// rejection here.
func (g *Gate) CheckChat(ctx context.Context, userID, plan string) error {
    return g.CheckMessageCreate(ctx, userID, plan, false)
}

// CheckFileUpload rejects when today's upload count has reached the plan's
// ceiling.
func (g *Gate) CheckFileUpload(ctx context.Context, userID, plan string) error {
    limits := LimitsFor(plan)
    usage, err := g.ledger.DailyUsage(ctx, userID, g.Today())
    if err != nil {
        return err
    }
    uploads := 0
    if usage.FileUploads != nil {
        uploads = *usage.FileUploads
    }
    if uploads >= limits.MaxFileUploads {
        return ErrQuotaExceeded
    }
    return nil
}

// CheckDowngrade rejects a plan change when the user's standing
// conversation count or today's counters already exceed the target plan's
// limits, which would otherwise strand the user over quota.
func (g *Gate) CheckDowngrade(ctx context.Context, userID, targetPlan string) error {
    limits := LimitsFor(targetPlan)
    count, err := g.conversations.CountConversations(ctx, userID)
    if err != nil {
        return err
    }
    if count > limits.MaxConversations {
        return ErrQuotaExceeded
    }
    usage, err := g.ledger.DailyUsage(ctx, userID, g.Today())
    if err != nil {
        return err
    }
    if usage.MessageCount > limits.DailyMessages {
        return ErrQuotaExceeded
    }
    if usage.TokenCount != nil && *usage.TokenCount > limits.DailyTokens {
        return ErrQuotaExceeded
    }
    if usage.FileUploads != nil && *usage.FileUploads > limits.MaxFileUploads {
        return ErrQuotaExceeded
    }
    return nil
}
