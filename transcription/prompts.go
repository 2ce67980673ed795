package transcription

const mediaTranscriptionPrompt = `You are a verbatim transcription engine.

You will receive an audio recording, or a raw machine transcript of one with a "[start-end] text" line per timed span.

GOAL:
Transcribe every spoken word exactly as spoken. Do NOT summarize, paraphrase, translate, or skip content.

RULES:
- Keep the original language of the speech.
- Split the transcript into consecutive segments of one or two sentences.
- Give every segment its start and end offset in seconds from the beginning of the audio. Reuse the offsets of the raw transcript when present.
- Start a new segment at every change of speaker and punctuate each speaker turn as a complete sentence.
- Omit non-speech sounds unless they interrupt speech.

OUTPUT:
Return a single JSON object matching the schema. Do not include any additional text.

FIELDS:
- category: one short label for the kind of content (e.g. "Meeting", "Lecture", "Interview", "Podcast", "Music", "Voice Note").
- segments: ordered list of {start, end, text}.
`

const metadataPrompt = `You write titles for transcripts.

You will receive the beginning of a transcript.

OUTPUT:
Return a single JSON object matching the schema. Do not include any additional text.

FIELDS:
- title: at most 8 words, no quotes, in the language of the transcript.
- description: one sentence describing what the recording is about, in the language of the transcript.
`

const videoSearchPrompt = `You reconstruct the spoken content of an online video using web search.

Find the video's transcript, captions, or a verbatim record of what is said in it.

RULES:
- Write the speech literally, in the first person, exactly as the speakers say it.
- Do NOT summarize. Do NOT describe the video. Do NOT narrate in the third person ("the speaker explains...").
- Do NOT invent content you cannot find. If you cannot find the spoken words, say so plainly.
- Keep the original language of the video.

OUTPUT:
Plain text. Start with "Title: <video title>" on the first line, then the transcript.
`

const videoStructurePrompt = `You convert raw transcript text into structured JSON.

You will receive text gathered about a video. It should contain a title line followed by the spoken words.

RULES:
- Copy the spoken words verbatim into segments of one or two sentences, in order.
- Estimate start and end offsets in seconds when the text carries none; keep them increasing.
- If the text contains no verbatim speech (only a summary, a description, or an apology), set error to "content_missing" and return an empty segments list.
- Otherwise set error to an empty string.

OUTPUT:
Return a single JSON object matching the schema. Do not include any additional text.

FIELDS:
- title: the video title.
- description: one sentence describing the video.
- error: "" or "content_missing".
- segments: ordered list of {start, end, text}.
`

const summaryPrompt = `Summarize the transcript as 3 to 5 bullet points of its key points.
Write in the same language as the transcript. Return only the bullet list.`

const translationPromptFormat = `Translate the transcript fully into %s.
Preserve paragraphs, line breaks and speaker turns. Do not summarize or omit anything. Return only the translation.`

const refinementPrompt = `Correct the grammar and punctuation of the transcript.
Do NOT change its meaning, do NOT remove or shorten anything, and do NOT add content.
Keep the original language. Return only the corrected text.`

const chatPrompt = `You answer questions about a transcript.

RULES:
- Answer strictly from the transcript below. Do not use outside knowledge or introduce facts it does not contain.
- If the transcript does not contain the answer, say that it does not.
- Answer in the language of the question.

TRANSCRIPT:
`
