package roundfeed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"TokenRank/internal/domain/models"
)

const (
	framePrefix = "NF#"
	helloPrefix = "RG#"
)

type outerFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type roundFrame struct {
	Type    string          `json:"type"`
	Status  string          `json:"status"`
	RoundID string          `json:"rdId"`
	Token   json.RawMessage `json:"token"`
	Time    struct {
		Now struct {
			Settle int64 `json:"settle"`
		} `json:"now"`
	} `json:"time"`
}

type tokenState struct {
	Rank  *int     `json:"s"`
	Value *float64 `json:"p"`
}

// ParseFrame decodes one feed payload. ok is false for frames that are not
// round updates, which the feed sends in between.
func ParseFrame(payload []byte, receivedAt time.Time) (ev models.RoundEvent, ok bool, err error) {
	if !bytes.HasPrefix(payload, []byte(framePrefix)) {
		return ev, false, nil
	}
	var outer outerFrame
	if err := json.Unmarshal(payload[len(framePrefix):], &outer); err != nil {
		return ev, false, fmt.Errorf("decode frame: %w", err)
	}
	if outer.Type != "gameData" || outer.Data == "" {
		return ev, false, nil
	}
	var rf roundFrame
	if err := json.Unmarshal([]byte(outer.Data), &rf); err != nil {
		return ev, false, fmt.Errorf("decode game data: %w", err)
	}
	if rf.Type != "round" || rf.RoundID == "" {
		return ev, false, nil
	}

	symbols, states, err := decodeTokens(rf.Token)
	if err != nil {
		return ev, false, fmt.Errorf("round %s tokens: %w", rf.RoundID, err)
	}

	ev = models.RoundEvent{
		RoundID:    rf.RoundID,
		Status:     rf.Status,
		Symbols:    symbols,
		ReceivedAt: receivedAt,
	}
	if rf.Time.Now.Settle > 0 {
		ev.SettledAt = time.UnixMilli(rf.Time.Now.Settle).UTC()
	}
	if ev.Settling() {
		for i, sym := range symbols {
			st := states[i]
			if st.Rank == nil || st.Value == nil {
				continue
			}
			ev.Results = append(ev.Results, models.SymbolResult{Symbol: sym, Rank: *st.Rank, Value: *st.Value})
		}
		sort.SliceStable(ev.Results, func(i, j int) bool { return ev.Results[i].Rank < ev.Results[j].Rank })
	}
	return ev, true, nil
}

// decodeTokens walks the token object so symbols keep the feed's order.
func decodeTokens(raw json.RawMessage) ([]string, []tokenState, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		// an empty token list arrives as []
		if ok && d == '[' {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected token payload")
	}

	var (
		symbols []string
		states  []tokenState
		seen    = make(map[string]bool)
	)
	for dec.More() {
		k, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		var st tokenState
		if err := dec.Decode(&st); err != nil {
			return nil, nil, err
		}
		sym := strings.ToUpper(strings.TrimSpace(k.(string)))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
		states = append(states, st)
	}
	return symbols, states, nil
}
