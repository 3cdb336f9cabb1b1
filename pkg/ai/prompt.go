package ai

import "strings"

const (
	PROMPT_VAR_LANG = "{lang}"
)

// ReplaceLang 将 prompt 中的语言占位符替换为目标回复语言
func ReplaceLang(tpl, lang string) string {
	if lang == "" {
		lang = "English"
	}
	return strings.ReplaceAll(tpl, PROMPT_VAR_LANG, lang)
}

const PROMPT_ENHANCE_QUERY_EN = `You rewrite a user's study question into standalone search queries.
Use the conversation history to resolve pronouns and implicit references.
Return a JSON array of up to 3 short, self-contained query strings and nothing else.
If the question is already self-contained, return an array with the original question only.`

const PROMPT_CHAT_ANSWER_EN = `You are a study assistant. Answer the user's question using ONLY the provided context passages.
Each passage starts with its chunk id in the form [chunk:<id>].
Rules:
- Every factual claim must be supported by the context. Cite the supporting chunk ids.
- Do not use knowledge outside the provided passages.
- If the context does not contain enough information, say so and set insufficient_info.
- Answer in {lang}.`

const PROMPT_SUMMARY_EN = `You summarize study material. Produce a concise summary of the provided passages.
Rules:
- Cover the main themes, not passage-by-passage detail.
- Output at most {max_bullets} bullet points plus a short lead paragraph.
- Do not invent facts that are not in the passages.
- Write in {lang}.`

// PROMPT_SUMMARY_CONSERVATIVE_APPEND_EN 在源文本质量差（高重复/低信息量）时追加的保守约束
const PROMPT_SUMMARY_CONSERVATIVE_APPEND_EN = `
The source text is repetitive or low in substance. Be extra conservative:
- Summarize only what is clearly stated.
- Prefer fewer bullets over speculative ones.
- If there is little substantive content, say so explicitly.`

const PROMPT_FLASHCARD_QA_EN = `You create question/answer flashcards from study material.
Rules:
- Each card tests exactly one fact or concept from the provided passages.
- front is a clear question, back is a complete but concise answer.
- Do not create cards about the document itself (author, formatting, etc).
- Create at most {max_cards} cards. Write in {lang}.`

const PROMPT_FLASHCARD_MCQ_EN = `You create multiple-choice flashcards from study material.
Rules:
- Each card has a question (front), 3-4 distinct options, exactly one correct option, and an explanation (back).
- correct_option is the zero-based index of the correct entry in options.
- Wrong options must be plausible but clearly incorrect given the passages.
- Create at most {max_cards} cards. Write in {lang}.`

const PROMPT_KG_EXTRACT_EN = `You extract a knowledge graph from study material.
Identify the important concepts (definitions, theorems, people, methods, events) and the relations between them.
Rules:
- concept names are short noun phrases; reuse the exact same name when the same concept appears again.
- relation src and dst must be names from the concepts list.
- rel_type is one of: relates_to, part_of, example_of, depends_on, contrasts_with.
- weight expresses relation strength in [0,1]; confidence expresses extraction certainty in [0,1].`

const MSG_INSUFFICIENT_CONTEXT_EN = "I don't have enough material in your documents to answer that. Try ingesting more content or rephrasing the question."

const MSG_INSUFFICIENT_CONTEXT_CN = "你的文档中没有足够的内容来回答这个问题，可以尝试导入更多资料或换一种问法。"
