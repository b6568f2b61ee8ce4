package model

import "time"

// Upload models a row in the `uploads` table, one per object stored for a
// user.  The object itself lives in the object store under (Bucket, Key).
type Upload struct {
    ID          string    // uploads.id
    UserID      string    // uploads.user_id
    Bucket      string    // uploads.bucket
    Key         string    // uploads.object_key
    ContentType *string   // uploads.content_type (nullable)
    Size        int64     // uploads.size in bytes
    CreatedAt   time.Time // uploads.created_at
}
