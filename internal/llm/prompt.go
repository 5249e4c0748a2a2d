package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/icebreaker-scheduler/internal/ranking"
)

const systemPrompt = `You help two university students pick a time to meet.
You receive both students' weekly availability, an optional preference, and a list of candidate slots.
Choose only from the candidate slots; never invent a date or time.
Order the slots from best to worst and give a one-sentence reason for each.
Answer with a JSON object: {"suggestions":[{"day":"Monday","date":"YYYY-MM-DD","startTime":"HH:MM","endTime":"HH:MM","reason":"..."}]}`

func buildPrompt(req ranking.GatewayRequest) (string, error) {
	requester, err := json.Marshal(req.Requester)
	if err != nil {
		return "", fmt.Errorf("llm: encode requester availability: %w", err)
	}
	recipient, err := json.Marshal(req.Recipient)
	if err != nil {
		return "", fmt.Errorf("llm: encode recipient availability: %w", err)
	}
	candidates, err := json.Marshal(req.Candidates)
	if err != nil {
		return "", fmt.Errorf("llm: encode candidates: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Time zone: %s\n", req.TimeZone)
	if !req.Now.IsZero() {
		fmt.Fprintf(&b, "Current time: %s\n", req.Now.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "Requester availability: %s\n", requester)
	fmt.Fprintf(&b, "Recipient availability: %s\n", recipient)
	if pref := strings.TrimSpace(req.Preference); pref != "" {
		fmt.Fprintf(&b, "Preference: %s\n", pref)
	}
	fmt.Fprintf(&b, "Candidate slots: %s\n", candidates)
	return b.String(), nil
}
