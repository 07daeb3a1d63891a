package oracle

import (
	"encoding/json"
	"fmt"
)

const decideTemplate = `You are an Autonomous AI Mystery Shopper analyzing a website.

Goal: %s
Step: %d
Previous Actions: %s

RULES:
- Don't repeat cookie acceptance
- Look for: Sign In, Login, Register, Create Account, Get Started
- Analyze forms for UX quality
- After 5-6 steps or reaching signup, finish

Return JSON:
{
    "action": "click" | "scroll" | "finish",
    "label": "button/link text",
    "value": "",
    "reason": "why taking this action",
    "ux_observation": "UX issues noticed"
}
`

const scoreTemplate = `Analyze this screenshot from: %s

Return JSON:
{
    "page_type": "homepage | signup | login | other",
    "ux_issues": [
        {
            "severity": "high | medium | low",
            "issue": "description",
            "location": "where",
            "impact": "conversion impact"
        }
    ],
    "positive_aspects": ["good practices"],
    "actionable_suggestions": [
        {
            "suggestion": "what to improve",
            "implementation": "how to fix",
            "expected_impact": "improvement estimate"
        }
    ],
    "conversion_score": 75,
    "overall_assessment": "summary"
}
`

// DecidePrompt renders the navigation prompt.
func DecidePrompt(goal string, step int, history []string) string {
	if history == nil {
		history = []string{}
	}
	h, _ := json.Marshal(history)
	return fmt.Sprintf(decideTemplate, goal, step, h)
}

// ScorePrompt renders the UX analysis prompt.
func ScorePrompt(pageURL string) string {
	if pageURL == "" {
		pageURL = "unknown page"
	}
	return fmt.Sprintf(scoreTemplate, pageURL)
}
