// Package vertex implements the adapter for Google Vertex AI generateContent
// endpoints, covering Gemini models behind a project-scoped regional host.
// It maps the shared message types onto Vertex contents and systemInstruction
// blocks and decodes the streamGenerateContent SSE stream.
package vertex
