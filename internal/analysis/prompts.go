package analysis

import (
	"fmt"
	"strings"
)

const assistantSystemPrompt = "You are a financial assistant providing structured insights."

// questionPrompt grounds a chat question in retrieved article text.
func questionPrompt(question, text string) string {
	if strings.TrimSpace(text) == "" {
		return question
	}
	return fmt.Sprintf(`Use the following news coverage to answer the question. Say so if the coverage does not contain the answer.

**News:**
%s

**Question:**
%s`, text, question)
}

func summaryPrompt(focus, text string) string {
	return fmt.Sprintf(`You are a financial expert. Summarize the following article focusing on %s. Extract key financial and trading insights.

**Article:**
%s

**Summary:**
- **Stock Performance & Market Reaction:** (Mention price movements, investor sentiment, and market impact.)
- **Key Financial Metrics:** (Earnings, revenue, debt, P/E ratio, etc.)
- **Industry Trends & Macro Factors:** (Regulatory impact, sector trends.)
- **Company-Specific News:** (Mergers, leadership changes, product launches.)
- **Sentiment Analysis:** (Classify sentiment as Bullish, Bearish, or Neutral.)`, focus, text)
}

func sentimentPrompt(text string) string {
	return fmt.Sprintf(`You are a financial sentiment analysis AI. Analyze the sentiment of the given article.

**Article:**
%q

**Response Format:**
- **Sentiment:** [Positive / Slightly Positive / Neutral / Slightly Negative / Negative]
- **Sentiment Direction:** [Positive to Neutral / Neutral to Positive / Negative to Neutral, etc.]
- **Reasoning:** (Provide 2-4 key points explaining sentiment.)`, text)
}
