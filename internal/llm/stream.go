package llm

import (
    "bufio"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "strings"
)

type streamChunk struct {
    Choices []struct {
        Delta struct {
            Content string `json:"content"`
        } `json:"delta"`
    } `json:"choices"`
    Usage *struct {
        TotalTokens int `json:"total_tokens"`
    } `json:"usage"`
}

// ChatStream sends an ordered history and streams the response.  onDelta
// is called for each incremental text chunk as it arrives; the full text
// and the provider-reported token count are returned once the stream
// ends.  An error from onDelta aborts the stream.
func (c *Client) ChatStream(ctx context.Context, messages []Message, onDelta func(string) error) (string, int, error) {
    body, err := c.do(ctx, chatRequest{
        Model:         c.model,
        Messages:      messages,
        Stream:        true,
        StreamOptions: &streamOptions{IncludeUsage: true},
    })
    if err != nil {
        return "", 0, err
    }
    defer body.Close()

    var (
        full   strings.Builder
        tokens int
    )
    err = readSSE(body, func(data string) error {
        if data == "[DONE]" {
            return nil
        }
        var chunk streamChunk
        if err := json.Unmarshal([]byte(data), &chunk); err != nil {
            return fmt.Errorf("%w: decode chunk: %v", ErrProvider, err)
        }
        if chunk.Usage != nil {
            tokens = chunk.Usage.TotalTokens
        }
        for _, ch := range chunk.Choices {
            if ch.Delta.Content == "" {
                continue
            }
            full.WriteString(ch.Delta.Content)
            if onDelta != nil {
                if err := onDelta(ch.Delta.Content); err != nil {
                    return err
                }
            }
        }
        return nil
    })
    if err != nil {
        return full.String(), tokens, err
    }
    return full.String(), tokens, nil
}

// readSSE parses a server-sent-event body, invoking onData once per event
// with the joined data lines.  Comments and event names are skipped; a
// blank line terminates an event.
func readSSE(r io.Reader, onData func(string) error) error {
    br := bufio.NewReader(r)
    var dataLines []string

    flush := func() error {
        if len(dataLines) == 0 {
            return nil
        }
        data := strings.Join(dataLines, "\n")
        dataLines = nil
        return onData(data)
    }

    for {
        line, err := br.ReadString('\n')
        if err != nil {
            if errors.Is(err, io.EOF) {
                return flush()
            }
            return fmt.Errorf("%w: read stream: %v", ErrProvider, err)
        }
        line = strings.TrimRight(line, "\r\n")

        if line == "" {
            if err := flush(); err != nil {
                return err
            }
            continue
        }
        if strings.HasPrefix(line, ":") {
            continue
        }
        if strings.HasPrefix(line, "data:") {
            dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
        }
    }
}
