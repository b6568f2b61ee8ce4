package quota

// Limits is the static per-plan configuration: price in whole currency
// units plus the daily and standing ceilings the gate enforces.
type Limits struct {
    Price            int `json:"price"`
    DailyMessages    int `json:"daily_messages"`
    DailyTokens      int `json:"daily_tokens"`
    MaxConversations int `json:"max_conversations"`
    MaxFileUploads   int `json:"max_file_uploads"`
}

// Plans maps every known plan tag to its limits.
var Plans = map[string]Limits{
    "free": {
        Price:            0,
        DailyMessages:    20,
        DailyTokens:      5000,
        MaxConversations: 3,
        MaxFileUploads:   0,
    },
    "pro": {
        Price:            10,
        DailyMessages:    1000,
        DailyTokens:      100000,
        MaxConversations: 100,
        MaxFileUploads:   100,
    },
}

// LimitsFor resolves a plan tag to its limits.  Unrecognized tags fall
// back to "free" so every user always resolves to a known configuration.
func LimitsFor(plan string) Limits {
    if l, ok := Plans[plan]; ok {
        return l
    }
    return Plans["free"]
}

// Known reports whether the tag names a configured plan.
func Known(plan string) bool {
    _, ok := Plans[plan]
    return ok
}
