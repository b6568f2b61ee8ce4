package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// cachedResponse is the stored form of a cacheable response.
type cachedResponse struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// bodyCapture buffers the response body while forwarding it to the client.
type bodyCapture struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
}

func (w *bodyCapture) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(b []byte) (int, error) {
    w.buf.Write(b)
    return w.ResponseWriter.Write(b)
}

// Cache returns a middleware that serves successful GET responses from
// Redis for the given TTL.  Intended for cheap, rarely-changing payloads
// such as the plan listing.  When rdb is nil, or on any Redis error, the
// request passes straight through.
func Cache(rdb *redis.Client, ttl time.Duration) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if rdb == nil || c.Request().Method != http.MethodGet {
                return next(c)
            }

            sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
            key := fmt.Sprintf("cache:%x", sum)

            ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
            defer cancel()

            if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var stored cachedResponse
                if json.Unmarshal(raw, &stored) == nil {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(stored.Status, stored.ContentType, stored.Body)
                }
            }

            rec := &bodyCapture{ResponseWriter: c.Response().Writer, status: http.StatusOK}
            c.Response().Writer = rec
            if err := next(c); err != nil {
                return err
            }

            if rec.status == http.StatusOK {
                stored, err := json.Marshal(cachedResponse{
                    Status:      rec.status,
                    ContentType: c.Response().Header().Get(echo.HeaderContentType),
                    Body:        rec.buf.Bytes(),
                })
                if err == nil {
                    _ = rdb.Set(ctx, key, stored, ttl).Err()
                }
            }
            return nil
        }
    }
}
