// Package llm contains adapters and shared helpers for invoking large
// language models. It abstracts away provider-specific APIs, threads
// conversation memory into provider prompt formats, and post-processes raw
// model output into executable Python code.
package llm
