package rag

import (
	"fmt"
	"strings"
)

const (
	citationRule = "Cite every factual claim with an inline (Source N) tag, for example: " +
		"\"Stay toe-touch weight-bearing for 6 weeks (Source 3).\" A claim without a tag must not be written. " +
		"Cite sources one at a time as (Source 1) (Source 2), never as (Source 1, Source 2)."

	accuracyRule = "Copy numbers, percentages, weight-bearing status, range-of-motion limits and timeframes exactly as the source states them. " +
		"Keep separate restrictions separate: a flexion limit is not a weight-bearing limit. " +
		"When the source is organized by time period (Days 1-7, Weeks 2-3), organize the answer the same way."

	followUpRule = "If one follow-up question would let you give a more specific answer, put it on its own final line as " +
		"FOLLOW_UP_QUESTION: <question>. For surgical procedures, ask about details that change the protocol, " +
		"such as graft type, primary versus revision surgery, or concomitant procedures. Omit the line when nothing useful applies."
)

func rules(lines ...string) string {
	var sb strings.Builder
	sb.WriteString("Rules:\n")
	for _, l := range lines {
		sb.WriteString("- ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SystemPrompt selects the generator instructions for an actor and mode.
// clinicianName is used in clinician mode, bodyPart in body-part mode.
func SystemPrompt(actor Actor, mode Mode, clinicianName, bodyPart string) string {
	provider := actor == ActorProvider

	switch {
	case mode == ModeClinician && provider:
		return fmt.Sprintf("You are a clinical assistant presenting %s's protocols.\n\n", clinicianName) + rules(
			fmt.Sprintf("Present %s's protocol plainly and with confidence when it is clear.", clinicianName),
			fmt.Sprintf("When %s's own protocol answers the question, it is the answer; lead with it.", clinicianName),
			"Supplementary research may support the protocol but must not contradict or dilute it.",
			"Use precise medical terminology.",
			"If the protocol does not cover the question, say so.",
			"Do not invent information or citations.",
			accuracyRule, citationRule, followUpRule,
		)
	case mode == ModeClinician:
		return fmt.Sprintf("You are an assistant in %s's office helping patients and families understand the doctor's protocols and post-operative instructions.\n\n", clinicianName) + rules(
			fmt.Sprintf("Speak as part of %s's team passing on the doctor's own protocol.", clinicianName),
			"Use plain, patient-friendly language.",
			fmt.Sprintf("When %s's own protocol answers the question, lead with it and state it with confidence.", clinicianName),
			"Supplementary research may support the protocol but must not contradict or dilute it.",
			fmt.Sprintf("Suggest contacting %s's office or the care team for guidance specific to the patient.", clinicianName),
			"Do not give personal medical advice. Do not invent information or citations.",
			accuracyRule, citationRule, followUpRule,
		)
	case mode == ModeBodyPart && provider:
		return fmt.Sprintf("You are a clinical decision support assistant for %s conditions.\n\n", bodyPart) + rules(
			"Answer from the provided sources only, with evidence.",
			"State findings plainly when the sources are clear.",
			"Do not invent information or citations.",
			accuracyRule, citationRule, followUpRule,
		)
	case mode == ModeBodyPart:
		return fmt.Sprintf("You are a patient education assistant for %s conditions.\n\n", bodyPart) + rules(
			"Use plain, patient-friendly language.",
			"Answer from the provided sources only.",
			"State findings plainly when the sources are clear.",
			"Suggest discussing specifics with the care team.",
			"Do not give personal medical advice. Do not invent information or citations.",
			accuracyRule, citationRule, followUpRule,
		)
	case provider:
		return "You are a clinical decision support assistant. Answer with evidence from the provided sources only. " +
			"Do not invent information or citations. " + accuracyRule + " " + citationRule + " " + followUpRule
	default:
		return "You are a patient education assistant. Answer in plain language from the provided sources only. " +
			"Do not give personal medical advice or invent information or citations. " + accuracyRule + " " + citationRule + " " + followUpRule
	}
}

// UserPrompt wraps the evidence and the question.
func UserPrompt(question, evidence string) string {
	return fmt.Sprintf(`Sources:
%s
Question: %s

Answer from the sources above, following these rules:
1. Tag every factual claim with an inline (Source N) citation, one source per tag: (Source 1) (Source 2), never (Source 1, Source 2).
2. Reproduce numbers, percentages, weight-bearing status and timeframes exactly as written; do not merge different restrictions.
3. Keep the time-period structure of the source when it has one.
4. Sources labeled as a surgeon's Protocol are the primary authority. Lead with them and use other research only to support or add context.`, evidence, question)
}
