package council

import (
	"fmt"
	"strings"
)

func rankingPrompt(userQuery string, labels []string, answers []ModelAnswer) string {
	var blocks []string
	for i, a := range answers {
		blocks = append(blocks, fmt.Sprintf("%s:\n%s", labels[i], a.Response))
	}
	responsesText := strings.Join(blocks, "\n\n")

	return fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, userQuery, responsesText)
}

func rebuttalPrompt(userQuery, myLabel, originalResponse, critiques string) string {
	return fmt.Sprintf(`You previously answered a user question. Other AI models have now reviewed and ranked all answers, including yours (you are identified as %s).

Original Question: %s

Your Original Answer:
%s

---
PEER REVIEWS AND RANKINGS:
%s
---

Your Task:
1. Read the critiques of your specific answer (%s).
2. Decide if you want to update or refine your answer based on valid points raised by peers.
3. If your original answer was perfect, just repeat it. If you missed something, fix it.
4. Provide your FINAL, revised answer. Do not include "Thinking" or meta-commentary about the process in the final output, just the answer.

Revised Answer:`, myLabel, userQuery, originalResponse, critiques, myLabel)
}

func chairmanPrompt(userQuery string, answers []ModelAnswer, verdicts []RankingVerdict) string {
	var stage1 strings.Builder
	for _, a := range answers {
		if a.Thinking != "" {
			fmt.Fprintf(&stage1, "Model: %s\nThinking Process:\n%s\n\nResponse: %s\n\n", a.Model, a.Thinking, a.Response)
		} else {
			fmt.Fprintf(&stage1, "Model: %s\nResponse: %s\n\n", a.Model, a.Response)
		}
	}

	var rankings []string
	for _, v := range verdicts {
		rankings = append(rankings, fmt.Sprintf("Model: %s\nRanking: %s", v.Model, v.Ranking))
	}

	return fmt.Sprintf(`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s

STAGE 2 - Peer Rankings:
%s

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`, userQuery, stage1.String(), strings.Join(rankings, "\n\n"))
}

func extractionPrompt(rankingText string, labels []string) string {
	labelsStr := strings.Join(labels, ", ")
	return fmt.Sprintf(`You are a data extraction assistant. I have a text where an AI model evaluated several responses (labeled %s).
I need you to extract the final ranking the model decided on.

Evaluation Text:
%s

Task:
1. Identify the final ranking of the responses from best to worst.
2. Return ONLY the labels in order, separated by commas.
3. Use the exact labels provided: %s

Example output: Response C, Response A, Response B

Final Ranking:`, labelsStr, rankingText, labelsStr)
}

func titlePrompt(userQuery string) string {
	return fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, userQuery)
}
