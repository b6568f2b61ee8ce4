package model

import "time"

// UsageRecord models a row in the `usage_records` table: the per-user
// daily counters the quota gate evaluates.  At most one row exists per
// (user, date); TokenCount and FileUploads stay NULL until the first
// increment of their kind.  Counters only ever grow within a day.
type UsageRecord struct {
    ID            string    // usage_records.id
    UserID        string    // usage_records.user_id
    UsageDate     time.Time // usage_records.usage_date (calendar date, UTC)
    MessageCount  int       // usage_records.message_count
    TokenCount    *int      // usage_records.token_count (nullable)
    FileUploads   *int      // usage_records.file_uploads (nullable)
    LastUpdatedAt time.Time // usage_records.last_updated_at
}
